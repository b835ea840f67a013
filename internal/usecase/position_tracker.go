package usecase

import (
	"context"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
)

// PositionTracker applies fills to stored positions. Callers hold the
// symbol lock for the read-modify-write.
type PositionTracker struct {
	repo    drepo.PositionRepository
	metrics drepo.Metrics
	now     func() time.Time
}

func NewPositionTracker(repo drepo.PositionRepository, metrics drepo.Metrics) *PositionTracker {
	return &PositionTracker{repo: repo, metrics: metrics, now: time.Now}
}

func (t *PositionTracker) Get(ctx context.Context, symbol string) (models.Position, error) {
	p, err := t.repo.Get(ctx, symbol)
	if err != nil {
		return models.Position{}, fmt.Errorf("get position %s: %w", symbol, err)
	}
	return p, nil
}

func (t *PositionTracker) List(ctx context.Context) ([]models.Position, error) {
	return t.repo.List(ctx)
}

// ApplyFill updates the weighted average cost. A SELL that would go below
// zero is refused and nothing is written.
func (t *PositionTracker) ApplyFill(ctx context.Context, f models.Fill) (models.Position, error) {
	cur, err := t.Get(ctx, f.Symbol)
	if err != nil {
		return models.Position{}, err
	}
	at := f.FilledAt
	if at.IsZero() {
		at = t.now()
	}
	next, err := cur.ApplyFill(f.Side, f.Quantity, f.Price, at)
	if err != nil {
		t.metrics.RecordError("position_fill")
		return cur, err
	}
	if err := t.repo.Save(ctx, next); err != nil {
		return cur, fmt.Errorf("save position %s: %w", f.Symbol, err)
	}
	t.metrics.RecordPosition(next.Symbol, next.Quantity)
	return next, nil
}

// Mark records price as the last known price without touching cost.
func (t *PositionTracker) Mark(ctx context.Context, symbol string, price float64) (models.Position, error) {
	cur, err := t.Get(ctx, symbol)
	if err != nil {
		return models.Position{}, err
	}
	if price <= 0 {
		return cur, nil
	}
	cur.LastKnownPrice = price
	if cur.UpdatedAt.IsZero() && cur.Quantity == 0 {
		// never traded; no row to mark
		return cur, nil
	}
	cur.UpdatedAt = t.now()
	if err := t.repo.Save(ctx, cur); err != nil {
		return cur, fmt.Errorf("mark position %s: %w", symbol, err)
	}
	return cur, nil
}
