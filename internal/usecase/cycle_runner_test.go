package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleEndToEndBuy(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.prices["AAPL"] = 150
	f.observe(t, "AAPL", models.SourceTwitter, 0.75, 1)
	ctx := context.Background()

	rep, err := f.runner.Run(ctx, f.configs.Current(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, rep.Actions["AAPL"])
	assert.Equal(t, 1, rep.Evaluated)
	assert.Empty(t, rep.Errors)

	pos, err := f.tracker.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(66), pos.Quantity)
	assert.InDelta(t, 150, pos.AveragePrice, 1e-9)

	history, err := f.snapshots.History(ctx, "AAPL", time.Now().Add(-time.Hour), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 0.75, history[0].WeightedScore, 1e-9)
}

func TestCycleDoesNotTouchFilledRecords(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.prices["AAPL"] = 150
	f.observe(t, "AAPL", models.SourceTwitter, 0.75, 1)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, f.configs.Current(), nil)
	require.NoError(t, err)
	first, err := f.trades.List(ctx, drepo.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// still bullish and already long: hold, no new record
	rep, err := f.runner.Run(ctx, f.configs.Current(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, rep.Actions["AAPL"])

	for i := 0; i < 5; i++ {
		f.observe(t, "AAPL", models.SourceTwitter, -1, 1)
	}
	rep, err = f.runner.Run(ctx, f.configs.Current(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, rep.Actions["AAPL"])

	all, err := f.trades.List(ctx, drepo.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	stored, err := f.trades.Get(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, *first[0], *stored)
}

func TestCycleContainsSymbolErrors(t *testing.T) {
	bad := symbolConfig("NVDA")
	bad.SentimentThreshold = 2
	f := newFixture(t, symbolConfig("AAPL"), symbolConfig("TSLA"), bad)
	f.prices["TSLA"] = 200
	f.observe(t, "TSLA", models.SourceNews, 0.9, 1)

	rep, err := f.runner.Run(context.Background(), f.configs.Current(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ActionBuy, rep.Actions["TSLA"])
	assert.Equal(t, models.ActionHold, rep.Actions["AAPL"])
	assert.Contains(t, rep.Errors, "AAPL")
	assert.Contains(t, rep.Errors, "NVDA")
	assert.Equal(t, 1, rep.Skipped)
}

func TestCycleHoldsWithoutPrice(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.observe(t, "AAPL", models.SourceTwitter, 0.9, 1)

	rep, err := f.runner.Run(context.Background(), f.configs.Current(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, rep.Actions["AAPL"])
	assert.Contains(t, rep.Errors["AAPL"], models.ErrNoPrice.Error())
	assert.Zero(t, f.broker.Calls())
}

func TestCycleHoldsWhileOrderOutstanding(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	submittedRecord(t, f)
	f.prices["AAPL"] = 100
	f.observe(t, "AAPL", models.SourceTwitter, 0.9, 1)
	calls := f.broker.Calls()

	rep, err := f.runner.Run(context.Background(), f.configs.Current(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, rep.Actions["AAPL"])
	assert.Equal(t, calls, f.broker.Calls())
}

func TestCycleStopsBeforeStarting(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"), symbolConfig("TSLA"))
	stop := make(chan struct{})
	close(stop)

	rep, err := f.runner.Run(context.Background(), f.configs.Current(), stop)
	require.NoError(t, err)
	assert.True(t, rep.Stopped)
	assert.Zero(t, rep.Evaluated)
}

func TestCycleAbortsOnLockTimeout(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.runner.settings.LockTimeout = 20 * time.Millisecond
	release, err := f.locks.Acquire(context.Background(), "AAPL", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = f.runner.Run(context.Background(), f.configs.Current(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrLockTimeout))
}

func TestCycleSharesEquityBudget(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"), symbolConfig("TSLA"))
	f.runner.settings.AccountEquity = 12000
	f.prices["AAPL"] = 100
	f.prices["TSLA"] = 100
	f.observe(t, "AAPL", models.SourceNews, 0.9, 1)
	f.observe(t, "TSLA", models.SourceNews, 0.9, 1)

	_, err := f.runner.Run(context.Background(), f.configs.Current(), nil)
	require.NoError(t, err)

	positions, err := f.tracker.List(context.Background())
	require.NoError(t, err)
	var spent float64
	for _, p := range positions {
		spent += float64(p.Quantity) * p.AveragePrice
	}
	assert.LessOrEqual(t, spent, 12000.0)
	assert.InDelta(t, 12000, spent, 1e-9)
}
