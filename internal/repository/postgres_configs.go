package repository

import (
	"context"
	"fmt"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
)

var _ domrepo.ConfigSource = (*PostgresConfigSource)(nil)

// PostgresConfigSource reads the symbol_configs table.
type PostgresConfigSource struct {
	db DBTX
}

func NewPostgresConfigSource(db DBTX) *PostgresConfigSource {
	return &PostgresConfigSource{db: db}
}

type symbolConfigRow struct {
	Symbol             string  `db:"symbol"`
	WeightTwitter      float64 `db:"weight_twitter"`
	WeightReddit       float64 `db:"weight_reddit"`
	WeightNews         float64 `db:"weight_news"`
	SentimentThreshold float64 `db:"sentiment_threshold"`
	MaxPositionSize    float64 `db:"max_position_size"`
	IsActive           bool    `db:"is_active"`
}

func (s *PostgresConfigSource) Load(ctx context.Context) ([]models.SymbolConfig, error) {
	var rows []symbolConfigRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT symbol, weight_twitter, weight_reddit, weight_news,
		       sentiment_threshold, max_position_size, is_active
		FROM symbol_configs`); err != nil {
		return nil, fmt.Errorf("load symbol configs: %w", err)
	}
	out := make([]models.SymbolConfig, len(rows))
	for i, r := range rows {
		var w models.Weights
		w[models.SourceTwitter] = r.WeightTwitter
		w[models.SourceReddit] = r.WeightReddit
		w[models.SourceNews] = r.WeightNews
		out[i] = models.SymbolConfig{
			Symbol:             models.NormalizeSymbol(r.Symbol),
			Weights:            w,
			SentimentThreshold: r.SentimentThreshold,
			MaxPositionSize:    r.MaxPositionSize,
			IsActive:           r.IsActive,
		}
	}
	return out, nil
}
