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

var errSubmitTimeout = errors.New("order submission timed out")

// ExecutionResult is what one pass through risk and the broker produced.
// Record is nil when risk sized the order down to nothing.
type ExecutionResult struct {
	Risk   RiskResult
	Record *models.TradeRecord
}

// TradeExecutor takes an intent through risk, the trade log, the broker and
// the position tracker. Callers hold the symbol lock.
type TradeExecutor struct {
	broker    domsvc.Broker
	trades    drepo.TradeRepository
	tracker   *PositionTracker
	publisher drepo.TradePublisher
	risk      *RiskManager
	metrics   drepo.Metrics
	logger    *xlogger.Logger

	submitTimeout time.Duration
	retryBackoff  time.Duration
	now           func() time.Time
}

type ExecutorOption func(*TradeExecutor)

// WithSubmitTimeout bounds a single broker submission.
func WithSubmitTimeout(d time.Duration) ExecutorOption {
	return func(e *TradeExecutor) {
		if d > 0 {
			e.submitTimeout = d
		}
	}
}

// WithRetryBackoff sets the pause before the single transient retry.
func WithRetryBackoff(d time.Duration) ExecutorOption {
	return func(e *TradeExecutor) {
		if d >= 0 {
			e.retryBackoff = d
		}
	}
}

func NewTradeExecutor(
	broker domsvc.Broker,
	trades drepo.TradeRepository,
	tracker *PositionTracker,
	publisher drepo.TradePublisher,
	risk *RiskManager,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	opts ...ExecutorOption,
) *TradeExecutor {
	e := &TradeExecutor{
		broker:        broker,
		trades:        trades,
		tracker:       tracker,
		publisher:     publisher,
		risk:          risk,
		metrics:       metrics,
		logger:        logger,
		submitTimeout: 10 * time.Second,
		retryBackoff:  time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one intent to completion or to an unknown-outcome SUBMITTED
// state. A risk rejection is recorded and returned as *models.RiskError;
// broker failures are recorded as REJECTED and returned.
func (e *TradeExecutor) Execute(ctx context.Context, intent models.TradeIntent, cfg models.SymbolConfig, pos models.Position, equity float64) (ExecutionResult, error) {
	rr := e.risk.Validate(intent, cfg, pos, equity)
	res := ExecutionResult{Risk: rr}
	if rr.Verdict == RiskHold {
		e.logger.Info("order sized to zero, holding",
			xlogger.String("symbol", intent.Symbol),
			xlogger.Float64("price", intent.Price),
			xlogger.Float64("max_position_size", cfg.MaxPositionSize),
		)
		return res, nil
	}

	rec := models.NewTradeRecord(rr.Intent, e.now())
	res.Record = rec

	if !rr.Approved() {
		if err := rec.Transition(models.StatusRiskRejected, rr.Reason, e.now()); err != nil {
			return res, err
		}
		if err := e.trades.Create(ctx, rec); err != nil {
			return res, fmt.Errorf("record rejected trade: %w", err)
		}
		e.publish(ctx, rec)
		e.metrics.RecordRiskRejection(rr.Reason)
		return res, models.NewRiskError(rr.Reason)
	}

	if rr.Capped {
		e.logger.Info("order capped by risk",
			xlogger.String("symbol", intent.Symbol),
			xlogger.Int64("requested", intent.Quantity),
			xlogger.Int64("approved", rr.Intent.Quantity),
		)
	}
	if err := rec.Transition(models.StatusRiskApproved, "", e.now()); err != nil {
		return res, err
	}
	if err := e.trades.Create(ctx, rec); err != nil {
		return res, fmt.Errorf("record approved trade: %w", err)
	}
	e.publish(ctx, rec)

	upd, err := e.submit(ctx, rec)
	switch {
	case errors.Is(err, errSubmitTimeout):
		// outcome unknown; the reconciler polls by client order id
		if terr := rec.Transition(models.StatusSubmitted, "submission timed out, outcome unknown", e.now()); terr != nil {
			return res, terr
		}
		e.save(ctx, rec)
		e.metrics.RecordOrder(rec.Side, "unknown")
		e.logger.Warn("order submission timed out",
			xlogger.String("symbol", rec.Symbol),
			xlogger.String("trade_id", rec.ID.String()),
		)
		return res, nil
	case err != nil:
		if terr := rec.Transition(models.StatusRejected, err.Error(), e.now()); terr != nil {
			return res, terr
		}
		e.save(ctx, rec)
		e.metrics.RecordOrder(rec.Side, "rejected")
		return res, fmt.Errorf("submit %s %s: %w", rec.Side, rec.Symbol, err)
	}

	rec.BrokerOrderID = upd.OrderID
	if err := rec.Transition(models.StatusSubmitted, "", e.now()); err != nil {
		return res, err
	}
	e.save(ctx, rec)
	e.metrics.RecordOrder(rec.Side, "submitted")

	return res, e.ApplyUpdate(ctx, rec, upd)
}

// ApplyUpdate advances a SUBMITTED record from a broker update and applies
// any fill to the position. A pending update leaves the record as is.
// The broker's verdict is always recorded; a fill the position book refuses
// is returned as models.ErrReconciliationFault.
func (e *TradeExecutor) ApplyUpdate(ctx context.Context, rec *models.TradeRecord, upd models.OrderUpdate) error {
	if rec.Status != models.StatusSubmitted {
		return fmt.Errorf("%w: apply update to %s record", models.ErrInvalidTransition, rec.Status)
	}
	if upd.OrderID != "" {
		rec.BrokerOrderID = upd.OrderID
	}

	var fillErr error
	switch upd.State {
	case models.OrderPending, "":
		return nil
	case models.OrderFilled, models.OrderCancelled:
		if upd.FilledQuantity > 0 || upd.State == models.OrderFilled {
			fillErr = e.fill(ctx, rec, upd)
		}
		next := models.StatusFilled
		if upd.State == models.OrderCancelled {
			next = models.StatusCancelled
		}
		reason := upd.Reason
		if fillErr != nil {
			reason = "reconciliation fault: " + fillErr.Error()
			fillErr = fmt.Errorf("%w: %s %s %d: %w", models.ErrReconciliationFault, rec.Side, rec.Symbol, rec.Quantity, fillErr)
			e.metrics.RecordError("reconciliation_fault")
		}
		if err := rec.Transition(next, reason, e.now()); err != nil {
			return err
		}
	case models.OrderRejected:
		if err := rec.Transition(models.StatusRejected, upd.Reason, e.now()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown order state %q", upd.State)
	}

	e.save(ctx, rec)
	e.metrics.RecordOrder(rec.Side, string(rec.Status))
	return fillErr
}

func (e *TradeExecutor) fill(ctx context.Context, rec *models.TradeRecord, upd models.OrderUpdate) error {
	qty := upd.FilledQuantity
	if qty <= 0 {
		qty = rec.Quantity
	}
	price := upd.FillPrice
	if price <= 0 {
		price = rec.Price
	}
	at := upd.UpdatedAt
	if at.IsZero() {
		at = e.now()
	}
	pos, err := e.tracker.ApplyFill(ctx, models.Fill{
		Symbol:   rec.Symbol,
		Side:     rec.Side,
		Quantity: qty,
		Price:    price,
		OrderID:  rec.BrokerOrderID,
		FilledAt: at,
	})
	if err != nil {
		e.logger.Error("apply fill failed",
			xlogger.String("symbol", rec.Symbol),
			xlogger.String("trade_id", rec.ID.String()),
			xlogger.Error(err),
		)
		return err
	}
	rec.FilledQuantity = qty
	rec.FillPrice = price
	e.logger.Info("fill applied",
		xlogger.String("symbol", rec.Symbol),
		xlogger.String("side", string(rec.Side)),
		xlogger.Int64("quantity", qty),
		xlogger.Float64("price", price),
		xlogger.Int64("position", pos.Quantity),
		xlogger.Float64("average_price", pos.AveragePrice),
	)
	return nil
}

func (e *TradeExecutor) submit(ctx context.Context, rec *models.TradeRecord) (models.OrderUpdate, error) {
	req := models.OrderRequest{
		ClientOrderID: rec.ClientOrderID(),
		Symbol:        rec.Symbol,
		Side:          rec.Side,
		Quantity:      rec.Quantity,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			e.logger.Warn("retrying order after transient broker error",
				xlogger.String("symbol", rec.Symbol),
				xlogger.Duration("backoff_ms", e.retryBackoff),
				xlogger.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return models.OrderUpdate{}, ctx.Err()
			case <-time.After(e.retryBackoff):
			}
		}

		sctx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		start := time.Now()
		upd, err := e.broker.SubmitOrder(sctx, req)
		timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()
		e.metrics.RecordLatency("broker_submit", time.Since(start).Seconds())

		if err == nil {
			return upd, nil
		}
		if timedOut {
			return models.OrderUpdate{}, errSubmitTimeout
		}
		if !errors.Is(err, models.ErrBrokerTransient) {
			return models.OrderUpdate{}, err
		}
		e.metrics.RecordError("broker_transient")
		lastErr = err
	}
	return models.OrderUpdate{}, lastErr
}

func (e *TradeExecutor) save(ctx context.Context, rec *models.TradeRecord) {
	if err := e.trades.Update(ctx, rec); err != nil {
		e.metrics.RecordError("trade_update")
		e.logger.Error("persist trade failed",
			xlogger.String("trade_id", rec.ID.String()),
			xlogger.String("status", string(rec.Status)),
			xlogger.Error(err),
		)
	}
	e.publish(ctx, rec)
}

func (e *TradeExecutor) publish(ctx context.Context, rec *models.TradeRecord) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishTrade(ctx, rec); err != nil {
		e.metrics.RecordError("trade_publish")
		e.logger.Warn("publish trade failed",
			xlogger.String("trade_id", rec.ID.String()),
			xlogger.Error(err),
		)
	}
}
