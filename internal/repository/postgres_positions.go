package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
)

var _ domrepo.PositionRepository = (*PostgresPositionRepository)(nil)

// PostgresPositionRepository keeps one row per symbol.
type PostgresPositionRepository struct {
	db DBTX
}

func NewPostgresPositionRepository(db DBTX) *PostgresPositionRepository {
	return &PostgresPositionRepository{db: db}
}

func (r *PostgresPositionRepository) Get(ctx context.Context, symbol string) (models.Position, error) {
	var p models.Position
	err := r.db.GetContext(ctx, &p,
		`SELECT symbol, quantity, average_price, last_known_price, updated_at FROM positions WHERE symbol = $1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FlatPosition(symbol), nil
	}
	if err != nil {
		return models.Position{}, fmt.Errorf("get position %s: %w", symbol, err)
	}
	return p, nil
}

func (r *PostgresPositionRepository) List(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	if err := r.db.SelectContext(ctx, &out,
		`SELECT symbol, quantity, average_price, last_known_price, updated_at FROM positions ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return out, nil
}

func (r *PostgresPositionRepository) Save(ctx context.Context, p models.Position) error {
	if p.Quantity < 0 {
		return fmt.Errorf("save position %s: %w", p.Symbol, models.ErrNegativePosition)
	}
	q := `INSERT INTO positions (symbol, quantity, average_price, last_known_price, updated_at)
		VALUES (:symbol, :quantity, :average_price, :last_known_price, :updated_at)
		ON CONFLICT (symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			average_price = EXCLUDED.average_price,
			last_known_price = EXCLUDED.last_known_price,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("save position %s: %w", p.Symbol, err)
	}
	return nil
}
