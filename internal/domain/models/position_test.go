package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFillBuyAveragesCost(t *testing.T) {
	at := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	p := FlatPosition("AAPL")

	p, err := p.ApplyFill(SideBuy, 10, 100, at)
	require.NoError(t, err)
	p, err = p.ApplyFill(SideBuy, 10, 110, at)
	require.NoError(t, err)

	assert.Equal(t, int64(20), p.Quantity)
	assert.InDelta(t, 105, p.AveragePrice, 1e-9)
	assert.Equal(t, 110.0, p.LastKnownPrice)
	assert.Equal(t, StateLong, p.State())
	assert.InDelta(t, 100, p.UnrealizedPnL(), 1e-9)
}

func TestApplyFillSellToFlatClearsCost(t *testing.T) {
	p := Position{Symbol: "TSLA", Quantity: 5, AveragePrice: 200}

	p, err := p.ApplyFill(SideSell, 5, 210, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.Quantity)
	assert.Zero(t, p.AveragePrice)
	assert.False(t, p.HasCost())
	assert.Equal(t, StateFlat, p.State())
	assert.Zero(t, p.UnrealizedPnL())
}

func TestApplyFillRefusesOversell(t *testing.T) {
	p := Position{Symbol: "TSLA", Quantity: 3, AveragePrice: 200}

	got, err := p.ApplyFill(SideSell, 4, 210, time.Now())
	require.ErrorIs(t, err, ErrNegativePosition)
	assert.Equal(t, p, got)
}

func TestApplyFillRejectsBadInput(t *testing.T) {
	p := FlatPosition("MSFT")

	_, err := p.ApplyFill(SideBuy, 0, 100, time.Now())
	assert.Error(t, err)
	_, err = p.ApplyFill(SideBuy, 1, 0, time.Now())
	assert.Error(t, err)
	_, err = p.ApplyFill(Side("SHORT"), 1, 10, time.Now())
	assert.Error(t, err)
}

func TestUnrealizedPnLWithoutPrice(t *testing.T) {
	p := Position{Symbol: "AAPL", Quantity: 10, AveragePrice: 150}
	assert.Zero(t, p.UnrealizedPnL())
	assert.Zero(t, p.MarketValue())
}
