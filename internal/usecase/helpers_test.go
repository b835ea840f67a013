package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/repository"
	xlogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/metrics"

	"github.com/stretchr/testify/require"
)

type staticPrices map[string]float64

func (p staticPrices) LastPrice(symbol string) (float64, bool) {
	v, ok := p[symbol]
	return v, ok
}

// fakeBroker fills at the request's price unless submit is overridden.
type fakeBroker struct {
	mu      sync.Mutex
	prices  staticPrices
	calls   int
	submit  func(ctx context.Context, req models.OrderRequest, call int) (models.OrderUpdate, error)
	status  map[string]models.OrderUpdate
	lastReq models.OrderRequest
}

func newFakeBroker(prices staticPrices) *fakeBroker {
	return &fakeBroker{prices: prices, status: make(map[string]models.OrderUpdate)}
}

func (b *fakeBroker) Name() string { return "fake" }

func (b *fakeBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderUpdate, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.lastReq = req
	fn := b.submit
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, req, call)
	}
	upd := models.OrderUpdate{
		OrderID:        fmt.Sprintf("ord-%d", call),
		ClientOrderID:  req.ClientOrderID,
		State:          models.OrderFilled,
		FilledQuantity: req.Quantity,
		FillPrice:      b.prices[req.Symbol],
	}
	b.mu.Lock()
	b.status[req.ClientOrderID] = upd
	b.mu.Unlock()
	return upd, nil
}

func (b *fakeBroker) OrderStatus(_ context.Context, id string) (models.OrderUpdate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	upd, ok := b.status[id]
	if !ok {
		return models.OrderUpdate{}, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return upd, nil
}

func (b *fakeBroker) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBroker) setStatus(id string, upd models.OrderUpdate) {
	b.mu.Lock()
	b.status[id] = upd
	b.mu.Unlock()
}

func symbolConfig(symbol string) models.SymbolConfig {
	return models.SymbolConfig{
		Symbol:             symbol,
		Weights:            models.Weights{0.4, 0.3, 0.3},
		SentimentThreshold: 0.6,
		MaxPositionSize:    10000,
		IsActive:           true,
	}
}

type fixture struct {
	store     *repository.MemorySentimentStore
	snapshots *repository.MemorySnapshotStore
	positions *repository.MemoryPositionRepository
	trades    *repository.MemoryTradeRepository
	source    *repository.StaticConfigSource
	prices    staticPrices
	broker    *fakeBroker

	configs    *ConfigStore
	aggregator *SentimentAggregator
	tracker    *PositionTracker
	executor   *TradeExecutor
	locks      *SymbolLocks
	reconciler *Reconciler
	runner     *CycleRunner
	logger     *xlogger.Logger
}

func newFixture(t *testing.T, cfgs ...models.SymbolConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemorySentimentStore(24 * time.Hour),
		snapshots: repository.NewMemorySnapshotStore(100),
		positions: repository.NewMemoryPositionRepository(),
		trades:    repository.NewMemoryTradeRepository(),
		source:    repository.NewStaticConfigSource(cfgs...),
		prices:    staticPrices{},
		locks:     NewSymbolLocks(),
		logger:    xlogger.Nop(),
	}
	f.broker = newFakeBroker(f.prices)
	m := metrics.Nop{}

	f.configs = NewConfigStore(f.source, f.logger)
	f.aggregator = NewSentimentAggregator(f.store)
	f.tracker = NewPositionTracker(f.positions, m)
	f.executor = NewTradeExecutor(f.broker, f.trades, f.tracker, nil, NewRiskManager(), m, f.logger,
		WithSubmitTimeout(time.Second),
		WithRetryBackoff(0),
	)
	f.reconciler = NewReconciler(f.trades, f.broker, f.executor, f.locks, f.logger, time.Second, time.Minute)
	f.runner = NewCycleRunner(f.aggregator, NewDecisionEngine(), f.executor, f.tracker, f.reconciler, f.locks,
		f.prices, f.snapshots, m, f.logger,
		CycleSettings{Window: time.Hour, LockTimeout: time.Second, Concurrency: 2},
	)
	_, err := f.configs.Reload(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) observe(t *testing.T, symbol string, src models.Source, sentiment, confidence float64) {
	t.Helper()
	require.NoError(t, f.store.Append(context.Background(), models.SentimentObservation{
		Symbol:     symbol,
		Source:     src,
		Sentiment:  sentiment,
		Confidence: confidence,
		Timestamp:  time.Now().Add(-time.Minute),
	}))
}
