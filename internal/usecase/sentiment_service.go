package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	xlogger "SentiTrade/pkg/logger"
)

// SentimentService answers read queries and ingests observations.
type SentimentService struct {
	configs    *ConfigStore
	aggregator *SentimentAggregator
	store      drepo.SentimentStore
	archive    drepo.ObservationArchive
	snapshots  drepo.SnapshotStore
	metrics    drepo.Metrics
	logger     *xlogger.Logger
	window     time.Duration
	now        func() time.Time
}

func NewSentimentService(
	configs *ConfigStore,
	aggregator *SentimentAggregator,
	store drepo.SentimentStore,
	archive drepo.ObservationArchive,
	snapshots drepo.SnapshotStore,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	window time.Duration,
) *SentimentService {
	return &SentimentService{
		configs:    configs,
		aggregator: aggregator,
		store:      store,
		archive:    archive,
		snapshots:  snapshots,
		metrics:    metrics,
		logger:     logger,
		window:     window,
		now:        time.Now,
	}
}

// Current aggregates symbol now. It returns models.ErrNotFound for a symbol
// without config and models.ErrInsufficientData when the window is empty.
func (s *SentimentService) Current(ctx context.Context, symbol string) (models.AggregatedSentiment, error) {
	cfg, ok := s.configs.Current().Get(symbol)
	if !ok {
		return models.AggregatedSentiment{}, fmt.Errorf("%w: no config for %s", models.ErrNotFound, models.NormalizeSymbol(symbol))
	}
	return s.aggregator.Aggregate(ctx, cfg, s.window)
}

// History returns stored snapshots, newest first.
func (s *SentimentService) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.SentimentSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.History(ctx, models.NormalizeSymbol(symbol), from, to, limit)
}

// Ingest validates an observation and writes it to the hot window and the
// archive. Both writes are keyed by the observation ID, so a caller may retry
// after either one fails without the window counting it twice.
func (s *SentimentService) Ingest(ctx context.Context, o models.SentimentObservation) error {
	o.Symbol = models.NormalizeSymbol(o.Symbol)
	if err := o.Validate(); err != nil {
		s.metrics.RecordError("observation_invalid")
		return err
	}
	if o.ID == "" {
		o.ID = o.ContentID()
	}
	if err := s.store.Append(ctx, o); err != nil {
		s.metrics.RecordError("observation_store")
		return fmt.Errorf("store observation: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, o); err != nil {
			s.metrics.RecordError("observation_archive")
			return fmt.Errorf("archive observation: %w", err)
		}
	}
	s.logger.Debug("observation ingested",
		xlogger.String("symbol", o.Symbol),
		xlogger.String("source", o.Source.String()),
		xlogger.Float64("sentiment", o.Sentiment),
	)
	return nil
}

// ActiveSymbols joins recent activity with the active configs.
func (s *SentimentService) ActiveSymbols(ctx context.Context, since time.Duration) ([]models.ActiveSymbol, error) {
	if s.archive == nil {
		return nil, nil
	}
	acts, err := s.archive.RecentActivity(ctx, s.now().Add(-since))
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	snap := s.configs.Current()
	out := make([]models.ActiveSymbol, 0, len(acts))
	for _, a := range acts {
		cfg, ok := snap.Get(a.Symbol)
		if !ok || !cfg.IsActive {
			continue
		}
		out = append(out, models.ActiveSymbol{
			Symbol:             cfg.Symbol,
			SentimentThreshold: cfg.SentimentThreshold,
			Observations:       a.Observations,
			LastObservedAt:     a.LastObservedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
