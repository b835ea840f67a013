package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ domrepo.TradeRepository = (*PostgresTradeRepository)(nil)

// PostgresTradeRepository stores trade records. status holds the collapsed
// enum, stage the precise lifecycle state.
type PostgresTradeRepository struct {
	db DBTX
}

func NewPostgresTradeRepository(db DBTX) *PostgresTradeRepository {
	return &PostgresTradeRepository{db: db}
}

// tradeRow adds the persisted status column to the record.
type tradeRow struct {
	models.TradeRecord
	PersistedStatus string `db:"status"`
}

const tradeColumns = `id, symbol, side, quantity, price, sentiment_score, origin, status, stage,
	reason, broker_order_id, filled_quantity, fill_price, created_at, updated_at`

func (r *PostgresTradeRepository) Create(ctx context.Context, rec *models.TradeRecord) error {
	q := `INSERT INTO trades (` + tradeColumns + `) VALUES (
		:id, :symbol, :side, :quantity, :price, :sentiment_score, :origin, :status, :stage,
		:reason, :broker_order_id, :filled_quantity, :fill_price, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, rowOf(rec)); err != nil {
		return fmt.Errorf("insert trade %s: %w", rec.ID, err)
	}
	return nil
}

func (r *PostgresTradeRepository) Update(ctx context.Context, rec *models.TradeRecord) error {
	q := `UPDATE trades SET
		status = :status,
		stage = :stage,
		reason = :reason,
		broker_order_id = :broker_order_id,
		filled_quantity = :filled_quantity,
		fill_price = :fill_price,
		updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, rowOf(rec))
	if err != nil {
		return fmt.Errorf("update trade %s: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("trade %s: %w", rec.ID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresTradeRepository) Get(ctx context.Context, id uuid.UUID) (*models.TradeRecord, error) {
	var row tradeRow
	err := r.db.GetContext(ctx, &row, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trade %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	rec := row.TradeRecord
	return &rec, nil
}

func (r *PostgresTradeRepository) List(ctx context.Context, f domrepo.TradeFilter) ([]*models.TradeRecord, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades WHERE 1=1`
	args := map[string]interface{}{}
	if f.Symbol != "" {
		q += ` AND symbol = :symbol`
		args["symbol"] = f.Symbol
	}
	if len(f.Status) > 0 {
		stages := make([]string, len(f.Status))
		for i, s := range f.Status {
			stages[i] = string(s)
		}
		q += ` AND stage IN (:stages)`
		args["stages"] = stages
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT :limit`
		args["limit"] = f.Limit
	}

	named, nargs, err := sqlx.Named(q, args)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	named, nargs, err = sqlx.In(named, nargs...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	named = sqlx.Rebind(sqlx.DOLLAR, named)

	var rows []tradeRow
	if err := r.db.SelectContext(ctx, &rows, named, nargs...); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	out := make([]*models.TradeRecord, len(rows))
	for i := range rows {
		rec := rows[i].TradeRecord
		out[i] = &rec
	}
	return out, nil
}

func rowOf(rec *models.TradeRecord) tradeRow {
	return tradeRow{TradeRecord: *rec, PersistedStatus: string(rec.Status.Persisted())}
}
