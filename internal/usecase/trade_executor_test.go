package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteFillsAndUpdatesPosition(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.prices["AAPL"] = 150
	ctx := context.Background()

	res, err := f.executor.Execute(ctx, buyIntent(1000, 150), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	assert.Equal(t, models.StatusFilled, res.Record.Status)
	assert.Equal(t, int64(66), res.Record.FilledQuantity)
	assert.Equal(t, res.Record.ClientOrderID(), f.broker.lastReq.ClientOrderID)

	pos, err := f.tracker.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(66), pos.Quantity)
	assert.InDelta(t, 150, pos.AveragePrice, 1e-9)

	stored, err := f.trades.Get(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, stored.Status)
}

func TestExecuteRecordsRiskRejection(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	ctx := context.Background()
	sell := models.TradeIntent{Symbol: "AAPL", Side: models.SideSell, Quantity: 5, Price: 100}

	res, err := f.executor.Execute(ctx, sell, symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))

	var riskErr *models.RiskError
	require.ErrorAs(t, err, &riskErr)
	assert.Equal(t, ReasonNoPosition, riskErr.Reason)
	assert.Equal(t, models.StatusRiskRejected, res.Record.Status)
	assert.Zero(t, f.broker.Calls())

	recs, err := f.trades.List(ctx, drepo.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ReasonNoPosition, recs[0].Reason)
}

func TestExecuteRetriesTransientOnce(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.broker.submit = func(_ context.Context, req models.OrderRequest, call int) (models.OrderUpdate, error) {
		if call == 1 {
			return models.OrderUpdate{}, models.TransientBrokerError(errors.New("connection reset"))
		}
		return models.OrderUpdate{OrderID: "o-2", State: models.OrderFilled, FilledQuantity: req.Quantity, FillPrice: 100}, nil
	}

	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 2, f.broker.Calls())
	assert.Equal(t, models.StatusFilled, res.Record.Status)
}

func TestExecuteRejectsAfterSecondTransient(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.broker.submit = func(context.Context, models.OrderRequest, int) (models.OrderUpdate, error) {
		return models.OrderUpdate{}, models.TransientBrokerError(errors.New("503"))
	}

	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.ErrorIs(t, err, models.ErrBrokerTransient)
	assert.Equal(t, 2, f.broker.Calls())
	assert.Equal(t, models.StatusRejected, res.Record.Status)
}

func TestExecuteNeverRetriesPermanent(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.broker.submit = func(context.Context, models.OrderRequest, int) (models.OrderUpdate, error) {
		return models.OrderUpdate{}, models.PermanentBrokerError(errors.New("insufficient funds"))
	}

	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.ErrorIs(t, err, models.ErrBrokerPermanent)
	assert.Equal(t, 1, f.broker.Calls())
	assert.Equal(t, models.StatusRejected, res.Record.Status)

	pos, err := f.tracker.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Zero(t, pos.Quantity)
}

func TestExecuteTimeoutLeavesSubmitted(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.executor.submitTimeout = 20 * time.Millisecond
	f.broker.submit = func(ctx context.Context, _ models.OrderRequest, _ int) (models.OrderUpdate, error) {
		<-ctx.Done()
		return models.OrderUpdate{}, models.TransientBrokerError(ctx.Err())
	}

	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.broker.Calls())
	assert.Equal(t, models.StatusSubmitted, res.Record.Status)
}

func TestExecuteRiskHoldCreatesNoRecord(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	cfg := symbolConfig("AAPL")
	cfg.MaxPositionSize = 10

	res, err := f.executor.Execute(context.Background(), buyIntent(1, 100), cfg, models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, RiskHold, res.Risk.Verdict)
}

func TestApplyUpdatePartialCancel(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.broker.submit = func(context.Context, models.OrderRequest, int) (models.OrderUpdate, error) {
		return models.OrderUpdate{OrderID: "o-1", State: models.OrderCancelled, FilledQuantity: 4, FillPrice: 99}, nil
	}

	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Record.Status)
	assert.Equal(t, int64(4), res.Record.FilledQuantity)

	pos, err := f.tracker.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos.Quantity)
	assert.InDelta(t, 99, pos.AveragePrice, 1e-9)
}
