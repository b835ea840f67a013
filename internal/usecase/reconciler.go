package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	domsvc "SentiTrade/internal/domain/service"
	xlogger "SentiTrade/pkg/logger"
)

// Reconciler polls the broker for records left SUBMITTED and advances them.
type Reconciler struct {
	trades   drepo.TradeRepository
	broker   domsvc.Broker
	executor *TradeExecutor
	locks    *SymbolLocks
	logger   *xlogger.Logger

	lockTimeout time.Duration
	// orders the broker has never heard of are given up after this long
	grace time.Duration
	now   func() time.Time
}

func NewReconciler(
	trades drepo.TradeRepository,
	broker domsvc.Broker,
	executor *TradeExecutor,
	locks *SymbolLocks,
	logger *xlogger.Logger,
	lockTimeout, grace time.Duration,
) *Reconciler {
	return &Reconciler{
		trades:      trades,
		broker:      broker,
		executor:    executor,
		locks:       locks,
		logger:      logger,
		lockTimeout: lockTimeout,
		grace:       grace,
		now:         time.Now,
	}
}

// PendingSymbols lists symbols that still have a SUBMITTED record.
func (r *Reconciler) PendingSymbols(ctx context.Context) (map[string]bool, error) {
	recs, err := r.trades.List(ctx, drepo.TradeFilter{Status: []models.TradeStatus{models.StatusSubmitted}})
	if err != nil {
		return nil, fmt.Errorf("list submitted trades: %w", err)
	}
	out := make(map[string]bool, len(recs))
	for _, rec := range recs {
		out[rec.Symbol] = true
	}
	return out, nil
}

// Reconcile polls every SUBMITTED record once. Errors for one record are
// logged and do not stop the sweep; a lock timeout ends it.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	recs, err := r.trades.List(ctx, drepo.TradeFilter{Status: []models.TradeStatus{models.StatusSubmitted}})
	if err != nil {
		return 0, fmt.Errorf("list submitted trades: %w", err)
	}

	settled := 0
	for _, rec := range recs {
		done, err := r.reconcileOne(ctx, rec)
		if errors.Is(err, models.ErrLockTimeout) {
			return settled, err
		}
		if errors.Is(err, models.ErrReconciliationFault) {
			// settled at the broker, not in the book; needs an operator
			r.logger.Error("trade settled with reconciliation fault",
				xlogger.String("trade_id", rec.ID.String()),
				xlogger.String("symbol", rec.Symbol),
				xlogger.Error(err),
			)
			continue
		}
		if err != nil {
			r.logger.Warn("reconcile trade failed",
				xlogger.String("trade_id", rec.ID.String()),
				xlogger.String("symbol", rec.Symbol),
				xlogger.Error(err),
			)
			continue
		}
		if done {
			settled++
		}
	}
	return settled, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, rec *models.TradeRecord) (bool, error) {
	release, err := r.locks.Acquire(ctx, rec.Symbol, r.lockTimeout)
	if err != nil {
		return false, err
	}
	defer release()

	upd, err := r.broker.OrderStatus(ctx, rec.ClientOrderID())
	if errors.Is(err, models.ErrNotFound) {
		if r.now().Sub(rec.UpdatedAt) < r.grace {
			return false, nil
		}
		upd = models.OrderUpdate{State: models.OrderRejected, Reason: "order unknown to broker"}
	} else if err != nil {
		return false, fmt.Errorf("order status: %w", err)
	}

	if err := r.executor.ApplyUpdate(ctx, rec, upd); err != nil {
		return false, err
	}
	if rec.Status.Terminal() {
		r.logger.Info("trade reconciled",
			xlogger.String("trade_id", rec.ID.String()),
			xlogger.String("symbol", rec.Symbol),
			xlogger.String("status", string(rec.Status)),
		)
		return true, nil
	}
	return false, nil
}
