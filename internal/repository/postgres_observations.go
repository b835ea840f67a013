package repository

import (
	"context"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
)

var _ domrepo.ObservationArchive = (*PostgresObservationArchive)(nil)

// PostgresObservationArchive is the durable log of every observation.
type PostgresObservationArchive struct {
	db DBTX
}

func NewPostgresObservationArchive(db DBTX) *PostgresObservationArchive {
	return &PostgresObservationArchive{db: db}
}

func (a *PostgresObservationArchive) Archive(ctx context.Context, o models.SentimentObservation) error {
	q := `INSERT INTO sentiment_observations (obs_id, symbol, source, sentiment, confidence, observed_at)
		VALUES (:obs_id, :symbol, :source, :sentiment, :confidence, :observed_at)
		ON CONFLICT (obs_id) DO NOTHING`
	if o.ID == "" {
		o.ID = o.ContentID()
	}
	if _, err := a.db.NamedExecContext(ctx, q, o); err != nil {
		return fmt.Errorf("archive observation %s: %w", o.Symbol, err)
	}
	return nil
}

func (a *PostgresObservationArchive) RecentActivity(ctx context.Context, since time.Time) ([]models.SymbolActivity, error) {
	var out []models.SymbolActivity
	err := a.db.SelectContext(ctx, &out, `
		SELECT symbol, COUNT(*)::INT AS observations, MAX(observed_at) AS last_observed_at
		FROM sentiment_observations
		WHERE observed_at > $1
		GROUP BY symbol
		ORDER BY symbol`, since)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return out, nil
}
