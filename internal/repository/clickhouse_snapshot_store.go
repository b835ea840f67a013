package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	pkgch "SentiTrade/pkg/clickhouse"
	applogger "SentiTrade/pkg/logger"
)

var _ domrepo.SnapshotStore = (*ClickHouseSnapshotStore)(nil)

// SnapshotSchema creates the aggregate history table.
var SnapshotSchema = []string{
	`CREATE TABLE IF NOT EXISTS sentiment_snapshots (
		computed_at       DateTime64(3, 'UTC'),
		symbol            LowCardinality(String),
		weighted_score    Float64,
		source_count      UInt8,
		observation_count UInt32
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(computed_at)
	ORDER BY (symbol, computed_at)
	TTL toDateTime(computed_at) + INTERVAL 180 DAY`,
}

// ClickHouseSnapshotStore appends one row per aggregate and serves history.
type ClickHouseSnapshotStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewClickHouseSnapshotStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseSnapshotStore {
	return &ClickHouseSnapshotStore{db: ch.DB(), l: l}
}

func (s *ClickHouseSnapshotStore) SaveSnapshot(ctx context.Context, snap models.SentimentSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_snapshots (computed_at, symbol, weighted_score, source_count, observation_count) VALUES (?, ?, ?, ?, ?)`,
		snap.ComputedAt.UTC(),
		snap.Symbol,
		snap.WeightedScore,
		uint8(snap.SourceCount),
		uint32(snap.ObservationCount),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

func (s *ClickHouseSnapshotStore) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.SentimentSnapshot, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT computed_at, symbol, weighted_score, source_count, observation_count
		FROM sentiment_snapshots
		WHERE symbol = ? AND computed_at >= ? AND computed_at <= ?
		ORDER BY computed_at DESC
		LIMIT ?`, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]models.SentimentSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap models.SentimentSnapshot
			srcs uint8
			obs  uint32
		)
		if err := rows.Scan(&snap.ComputedAt, &snap.Symbol, &snap.WeightedScore, &srcs, &obs); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.SourceCount = int(srcs)
		snap.ObservationCount = int(obs)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse history",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}
