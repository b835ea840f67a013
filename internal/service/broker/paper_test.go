package broker

import (
	"context"
	"testing"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prices map[string]float64

func (p prices) LastPrice(s string) (float64, bool) {
	v, ok := p[s]
	return v, ok
}

func TestPaperBrokerFillsAtLastPrice(t *testing.T) {
	b := NewPaperBroker(prices{"AAPL": 150})
	ctx := context.Background()
	req := models.OrderRequest{ClientOrderID: "c1", Symbol: "AAPL", Side: models.SideBuy, Quantity: 3}

	upd, err := b.SubmitOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFilled, upd.State)
	assert.Equal(t, int64(3), upd.FilledQuantity)
	assert.Equal(t, 150.0, upd.FillPrice)

	// resubmitting the same client order id returns the first fill
	again, err := b.SubmitOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, upd.OrderID, again.OrderID)

	st, err := b.OrderStatus(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, upd, st)
}

func TestPaperBrokerErrors(t *testing.T) {
	b := NewPaperBroker(prices{})
	ctx := context.Background()

	_, err := b.SubmitOrder(ctx, models.OrderRequest{ClientOrderID: "c1", Symbol: "AAPL", Side: models.SideBuy, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrBrokerPermanent)

	_, err = b.SubmitOrder(ctx, models.OrderRequest{ClientOrderID: "c2", Symbol: "AAPL", Side: models.SideBuy})
	assert.ErrorIs(t, err, models.ErrBrokerPermanent)

	_, err = b.OrderStatus(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
