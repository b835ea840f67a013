package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	xlogger "SentiTrade/pkg/logger"
)

// ConfigStore holds the current ConfigSnapshot. A cycle reads Current once
// and uses that snapshot throughout; Reload swaps in a new one atomically.
type ConfigStore struct {
	source  drepo.ConfigSource
	logger  *xlogger.Logger
	current atomic.Pointer[models.ConfigSnapshot]
	version atomic.Int64
	now     func() time.Time
}

func NewConfigStore(source drepo.ConfigSource, logger *xlogger.Logger) *ConfigStore {
	return &ConfigStore{source: source, logger: logger, now: time.Now}
}

// Reload loads and validates the source. On failure the previous snapshot
// stays in place. Invalid configs are kept out of the snapshot; active ones
// are remembered so each cycle can report them.
func (s *ConfigStore) Reload(ctx context.Context) (*models.ConfigSnapshot, error) {
	cfgs, err := s.source.Load(ctx)
	if err != nil {
		return s.current.Load(), fmt.Errorf("load config: %w", err)
	}
	valid := make([]models.SymbolConfig, 0, len(cfgs))
	invalid := make(map[string]error)
	for _, c := range cfgs {
		c.Symbol = models.NormalizeSymbol(c.Symbol)
		if err := c.Validate(); err != nil {
			s.logger.Warn("invalid symbol config", xlogger.String("symbol", c.Symbol), xlogger.Bool("active", c.IsActive), xlogger.Error(err))
			if c.IsActive {
				invalid[c.Symbol] = err
			}
			continue
		}
		valid = append(valid, c)
	}

	snap := models.NewConfigSnapshot(s.version.Add(1), s.now(), valid).WithInvalid(invalid)
	s.current.Store(snap)
	s.logger.Info("symbol config loaded",
		xlogger.Int64("version", snap.Version()),
		xlogger.Int("symbols", snap.Len()),
		xlogger.Int("active", len(snap.Active())),
	)
	return snap, nil
}

// Current returns the live snapshot, or an empty one before the first load.
func (s *ConfigStore) Current() *models.ConfigSnapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return models.NewConfigSnapshot(0, time.Time{}, nil)
}
