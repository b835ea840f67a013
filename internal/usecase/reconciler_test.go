package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittedRecord(t *testing.T, f *fixture) *models.TradeRecord {
	t.Helper()
	f.executor.submitTimeout = 10 * time.Millisecond
	f.broker.submit = func(ctx context.Context, _ models.OrderRequest, _ int) (models.OrderUpdate, error) {
		<-ctx.Done()
		return models.OrderUpdate{}, ctx.Err()
	}
	res, err := f.executor.Execute(context.Background(), buyIntent(10, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, res.Record.Status)
	f.broker.submit = nil
	return res.Record
}

func TestReconcileAppliesLateFill(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	rec := submittedRecord(t, f)
	f.broker.setStatus(rec.ClientOrderID(), models.OrderUpdate{OrderID: "late", State: models.OrderFilled, FilledQuantity: 10, FillPrice: 101})

	pending, err := f.reconciler.PendingSymbols(context.Background())
	require.NoError(t, err)
	assert.True(t, pending["AAPL"])

	n, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.trades.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, stored.Status)
	assert.Equal(t, "late", stored.BrokerOrderID)

	pos, err := f.tracker.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.Quantity)
}

func TestReconcileWaitsForUnknownOrderWithinGrace(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	rec := submittedRecord(t, f)

	n, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.reconciler.now = func() time.Time { return rec.UpdatedAt.Add(2 * time.Minute) }
	n, err = f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.trades.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
}

// submittedSell leaves a bot SELL of qty unsettled against a position of qty.
func submittedSell(t *testing.T, f *fixture, qty int64) *models.TradeRecord {
	t.Helper()
	ctx := context.Background()
	pos, err := f.tracker.ApplyFill(ctx, models.Fill{Symbol: "AAPL", Side: models.SideBuy, Quantity: qty, Price: 100})
	require.NoError(t, err)

	f.executor.submitTimeout = 10 * time.Millisecond
	f.broker.submit = func(ctx context.Context, _ models.OrderRequest, _ int) (models.OrderUpdate, error) {
		<-ctx.Done()
		return models.OrderUpdate{}, ctx.Err()
	}
	intent := models.TradeIntent{Symbol: "AAPL", Side: models.SideSell, Quantity: qty, Price: 100, Origin: models.OriginBot}
	res, err := f.executor.Execute(ctx, intent, symbolConfig("AAPL"), pos, math.Inf(1))
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, res.Record.Status)
	f.broker.submit = nil
	return res.Record
}

func TestReconcileFillBeyondPositionIsFault(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	ctx := context.Background()
	rec := submittedSell(t, f, 10)
	// the shares left the book some other way before the broker reported
	_, err := f.tracker.ApplyFill(ctx, models.Fill{Symbol: "AAPL", Side: models.SideSell, Quantity: 10, Price: 100})
	require.NoError(t, err)
	f.broker.setStatus(rec.ClientOrderID(), models.OrderUpdate{OrderID: "s-1", State: models.OrderFilled, FilledQuantity: 10, FillPrice: 100})

	stored, err := f.trades.Get(ctx, rec.ID)
	require.NoError(t, err)
	done, err := f.reconciler.reconcileOne(ctx, stored)
	assert.False(t, done)
	require.ErrorIs(t, err, models.ErrReconciliationFault)
	assert.ErrorIs(t, err, models.ErrNegativePosition)

	stored, err = f.trades.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, stored.Status)
	assert.Contains(t, stored.Reason, "reconciliation fault")

	pos, err := f.tracker.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Zero(t, pos.Quantity)

	n, err := f.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
