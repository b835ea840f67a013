package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	domsvc "SentiTrade/internal/domain/service"
	xlogger "SentiTrade/pkg/logger"
)

// CycleReport summarizes one evaluation cycle.
type CycleReport struct {
	ConfigVersion int64                    `json:"config_version"`
	Started       time.Time                `json:"started"`
	Finished      time.Time                `json:"finished"`
	Evaluated     int                      `json:"evaluated"`
	Skipped       int                      `json:"skipped"`
	Reconciled    int                      `json:"reconciled"`
	Stopped       bool                     `json:"stopped"`
	Actions       map[string]models.Action `json:"actions"`
	Errors        map[string]string        `json:"errors,omitempty"`
}

// CycleSettings tunes a CycleRunner.
type CycleSettings struct {
	Window        time.Duration
	LockTimeout   time.Duration
	Concurrency   int
	AccountEquity float64
}

// CycleRunner evaluates every active symbol once against a fixed snapshot.
type CycleRunner struct {
	aggregator *SentimentAggregator
	decision   *DecisionEngine
	executor   *TradeExecutor
	tracker    *PositionTracker
	reconciler *Reconciler
	locks      *SymbolLocks
	prices     domsvc.PriceSource
	snapshots  drepo.SnapshotStore
	metrics    drepo.Metrics
	logger     *xlogger.Logger
	settings   CycleSettings
	now        func() time.Time
}

func NewCycleRunner(
	aggregator *SentimentAggregator,
	decision *DecisionEngine,
	executor *TradeExecutor,
	tracker *PositionTracker,
	reconciler *Reconciler,
	locks *SymbolLocks,
	prices domsvc.PriceSource,
	snapshots drepo.SnapshotStore,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	settings CycleSettings,
) *CycleRunner {
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	if settings.LockTimeout <= 0 {
		settings.LockTimeout = 30 * time.Second
	}
	return &CycleRunner{
		aggregator: aggregator,
		decision:   decision,
		executor:   executor,
		tracker:    tracker,
		reconciler: reconciler,
		locks:      locks,
		prices:     prices,
		snapshots:  snapshots,
		metrics:    metrics,
		logger:     logger,
		settings:   settings,
		now:        time.Now,
	}
}

type symbolOutcome struct {
	symbol string
	action models.Action
	err    error
	// skipped means stop or abort arrived before the symbol started
	skipped bool
}

// Run evaluates snap's active symbols. stop is checked before each symbol
// starts; a symbol already running is allowed to finish. Per-symbol errors
// are contained and reported; a lock timeout aborts the cycle.
func (r *CycleRunner) Run(ctx context.Context, snap *models.ConfigSnapshot, stop <-chan struct{}) (CycleReport, error) {
	rep := CycleReport{
		ConfigVersion: snap.Version(),
		Started:       r.now(),
		Actions:       make(map[string]models.Action),
		Errors:        make(map[string]string),
	}

	if r.reconciler != nil {
		n, err := r.reconciler.Reconcile(ctx)
		rep.Reconciled = n
		if errors.Is(err, models.ErrLockTimeout) {
			rep.Finished = r.now()
			return rep, fmt.Errorf("reconcile: %w", err)
		}
		if err != nil {
			r.logger.Warn("reconcile failed", xlogger.Error(err))
		}
	}

	pending := map[string]bool{}
	if r.reconciler != nil {
		p, err := r.reconciler.PendingSymbols(ctx)
		if err != nil {
			r.logger.Warn("pending orders lookup failed", xlogger.Error(err))
		} else {
			pending = p
		}
	}

	for sym, err := range snap.Invalid() {
		rep.Skipped++
		rep.Errors[sym] = err.Error()
		r.metrics.RecordError("config")
		r.logger.Error("symbol skipped: invalid config", xlogger.String("symbol", sym), xlogger.Error(err))
	}

	budget := newEquityBudget(r.availableEquity(ctx))
	abort := make(chan struct{})
	var abortOnce sync.Once
	var fatal error

	sem := make(chan struct{}, r.settings.Concurrency)
	results := make(chan symbolOutcome, len(snap.Active()))
	var wg sync.WaitGroup

dispatch:
	for _, cfg := range snap.Active() {
		if halted(stop, abort) {
			rep.Stopped = isClosed(stop)
			break dispatch
		}
		select {
		case sem <- struct{}{}:
		case <-stop:
			rep.Stopped = true
			break dispatch
		case <-abort:
			break dispatch
		}

		wg.Add(1)
		go func(cfg models.SymbolConfig) {
			defer wg.Done()
			defer func() { <-sem }()
			if halted(stop, abort) {
				results <- symbolOutcome{symbol: cfg.Symbol, skipped: true}
				return
			}
			action, err := r.evaluate(ctx, cfg, pending[cfg.Symbol], budget)
			if errors.Is(err, models.ErrLockTimeout) {
				abortOnce.Do(func() {
					fatal = err
					close(abort)
				})
			}
			results <- symbolOutcome{symbol: cfg.Symbol, action: action, err: err}
		}(cfg)
	}

	go func() { wg.Wait(); close(results) }()

	for out := range results {
		if out.skipped {
			rep.Skipped++
			continue
		}
		rep.Evaluated++
		rep.Actions[out.symbol] = out.action
		if out.err != nil {
			rep.Errors[out.symbol] = out.err.Error()
			r.logSymbolError(out.symbol, out.err)
		}
	}
	if isClosed(stop) {
		rep.Stopped = true
	}
	if len(rep.Errors) == 0 {
		rep.Errors = nil
	}
	rep.Finished = r.now()

	if fatal != nil {
		return rep, fmt.Errorf("cycle aborted: %w", fatal)
	}
	return rep, nil
}

func (r *CycleRunner) evaluate(ctx context.Context, cfg models.SymbolConfig, hasPending bool, budget *equityBudget) (models.Action, error) {
	sym := cfg.Symbol
	release, err := r.locks.Acquire(ctx, sym, r.settings.LockTimeout)
	if err != nil {
		return models.ActionHold, err
	}
	defer release()

	agg, err := r.aggregator.Aggregate(ctx, cfg, r.settings.Window)
	if err != nil {
		return models.ActionHold, err
	}
	r.metrics.RecordScore(sym, agg.WeightedScore)
	r.saveSnapshot(ctx, agg)

	pos, err := r.tracker.Get(ctx, sym)
	if err != nil {
		return models.ActionHold, err
	}
	price, havePrice := r.prices.LastPrice(sym)
	if havePrice {
		if marked, err := r.tracker.Mark(ctx, sym, price); err != nil {
			r.logger.Warn("mark position failed", xlogger.String("symbol", sym), xlogger.Error(err))
		} else {
			pos = marked
		}
	}

	d := r.decision.Decide(agg, pos, cfg)
	r.metrics.RecordDecision(sym, d.Action)
	r.logger.Debug("decision",
		xlogger.String("symbol", sym),
		xlogger.Float64("score", agg.WeightedScore),
		xlogger.Int("sources", agg.SourceCount),
		xlogger.String("state", string(d.State)),
		xlogger.String("action", string(d.Action)),
		xlogger.String("reason", d.Reason),
	)
	side, trade := d.Action.Side()
	if !trade {
		return models.ActionHold, nil
	}
	if hasPending {
		r.logger.Info("order outstanding, holding", xlogger.String("symbol", sym), xlogger.String("action", string(d.Action)))
		return models.ActionHold, nil
	}
	if !havePrice {
		return models.ActionHold, fmt.Errorf("%s: %w", sym, models.ErrNoPrice)
	}

	score := agg.WeightedScore
	intent := models.TradeIntent{
		Symbol:         sym,
		Side:           side,
		Price:          price,
		SentimentScore: &score,
		Origin:         models.OriginBot,
	}
	equity := math.Inf(1)
	var granted float64
	switch side {
	case models.SideBuy:
		// risk sizes this down; at least one share so a sub-share headroom degrades to HOLD
		intent.Quantity = max(int64(math.Floor(cfg.MaxPositionSize/price)), 1)
		granted = budget.reserve(cfg.MaxPositionSize)
		equity = granted
	case models.SideSell:
		intent.Quantity = pos.Quantity
	}

	res, err := r.executor.Execute(ctx, intent, cfg, pos, equity)
	if side == models.SideBuy {
		budget.refund(granted - committedNotional(res))
	}
	if err != nil {
		return d.Action, err
	}
	if res.Record == nil {
		return models.ActionHold, nil
	}
	return d.Action, nil
}

func (r *CycleRunner) saveSnapshot(ctx context.Context, agg models.AggregatedSentiment) {
	if r.snapshots == nil {
		return
	}
	if err := r.snapshots.SaveSnapshot(ctx, agg.Snapshot()); err != nil {
		r.metrics.RecordError("snapshot_save")
		r.logger.Warn("save snapshot failed", xlogger.String("symbol", agg.Symbol), xlogger.Error(err))
	}
}

// availableEquity is account equity less the marked value of open positions.
func (r *CycleRunner) availableEquity(ctx context.Context) float64 {
	if r.settings.AccountEquity <= 0 {
		return math.Inf(1)
	}
	positions, err := r.tracker.List(ctx)
	if err != nil {
		r.logger.Warn("list positions for equity failed", xlogger.Error(err))
		return 0
	}
	return r.settings.AccountEquity - openExposure(positions)
}

func (r *CycleRunner) logSymbolError(symbol string, err error) {
	fields := []xlogger.Field{xlogger.String("symbol", symbol), xlogger.Error(err)}
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		r.logger.Info("no signal", fields...)
	case errors.Is(err, models.ErrRiskRejected):
		r.logger.Warn("trade rejected by risk", fields...)
	case errors.Is(err, models.ErrBrokerTransient), errors.Is(err, models.ErrBrokerPermanent):
		r.metrics.RecordError("broker")
		r.logger.Error("broker error", fields...)
	case errors.Is(err, models.ErrLockTimeout):
		r.metrics.RecordError("lock_timeout")
		r.logger.Error("symbol lock timeout", fields...)
	default:
		r.metrics.RecordError("symbol")
		r.logger.Error("symbol evaluation failed", fields...)
	}
}

func openExposure(positions []models.Position) float64 {
	var total float64
	for _, p := range positions {
		mark := p.LastKnownPrice
		if mark <= 0 {
			mark = p.AveragePrice
		}
		total += p.Exposure(mark)
	}
	return total
}

func committedNotional(res ExecutionResult) float64 {
	rec := res.Record
	if rec == nil {
		return 0
	}
	switch rec.Status {
	case models.StatusFilled, models.StatusCancelled:
		return float64(rec.FilledQuantity) * rec.FillPrice
	case models.StatusSubmitted:
		return float64(rec.Quantity) * rec.Price
	}
	return 0
}

func halted(stop, abort <-chan struct{}) bool {
	return isClosed(stop) || isClosed(abort)
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// equityBudget hands out buying power to concurrent symbol pipelines.
type equityBudget struct {
	mu        sync.Mutex
	available float64
}

func newEquityBudget(available float64) *equityBudget {
	return &equityBudget{available: available}
}

func (b *equityBudget) reserve(want float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := math.Max(0, math.Min(want, b.available))
	if !math.IsInf(b.available, 1) {
		b.available -= g
	}
	return g
}

func (b *equityBudget) refund(amount float64) {
	if amount <= 0 {
		return
	}
	b.mu.Lock()
	if !math.IsInf(b.available, 1) {
		b.available += amount
	}
	b.mu.Unlock()
}
