package usecase

import (
	"math"
	"testing"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func buyIntent(qty int64, price float64) models.TradeIntent {
	return models.TradeIntent{Symbol: "AAPL", Side: models.SideBuy, Quantity: qty, Price: price}
}

func TestRiskCapsBuyToHeadroom(t *testing.T) {
	res := NewRiskManager().Validate(buyIntent(150, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))

	assert.True(t, res.Approved())
	assert.True(t, res.Capped)
	assert.Equal(t, int64(100), res.Intent.Quantity)
	assert.InDelta(t, 10000, res.Intent.Notional(), 1e-9)
}

func TestRiskCapsAtFractionalPrice(t *testing.T) {
	res := NewRiskManager().Validate(buyIntent(1000, 150), symbolConfig("AAPL"), models.FlatPosition("AAPL"), math.Inf(1))
	assert.True(t, res.Approved())
	assert.Equal(t, int64(66), res.Intent.Quantity)
}

func TestRiskCountsExistingExposure(t *testing.T) {
	pos := models.Position{Symbol: "AAPL", Quantity: 60, AveragePrice: 100}
	res := NewRiskManager().Validate(buyIntent(100, 100), symbolConfig("AAPL"), pos, math.Inf(1))
	assert.True(t, res.Approved())
	assert.Equal(t, int64(40), res.Intent.Quantity)

	full := models.Position{Symbol: "AAPL", Quantity: 100, AveragePrice: 100}
	res = NewRiskManager().Validate(buyIntent(1, 100), symbolConfig("AAPL"), full, math.Inf(1))
	assert.Equal(t, RiskRejected, res.Verdict)
	assert.Equal(t, ReasonPositionLimitReached, res.Reason)
}

func TestRiskHoldsBelowOneShare(t *testing.T) {
	cfg := symbolConfig("AAPL")
	cfg.MaxPositionSize = 50
	res := NewRiskManager().Validate(buyIntent(1, 100), cfg, models.FlatPosition("AAPL"), math.Inf(1))
	assert.Equal(t, RiskHold, res.Verdict)
}

func TestRiskEquityBound(t *testing.T) {
	res := NewRiskManager().Validate(buyIntent(100, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), 2500)
	assert.True(t, res.Approved())
	assert.Equal(t, int64(25), res.Intent.Quantity)

	res = NewRiskManager().Validate(buyIntent(100, 100), symbolConfig("AAPL"), models.FlatPosition("AAPL"), 0)
	assert.Equal(t, ReasonInsufficientEquity, res.Reason)
}

func TestRiskSellRules(t *testing.T) {
	rm := NewRiskManager()
	pos := models.Position{Symbol: "AAPL", Quantity: 10, AveragePrice: 100}
	sell := func(q int64) models.TradeIntent {
		return models.TradeIntent{Symbol: "AAPL", Side: models.SideSell, Quantity: q, Price: 100}
	}

	assert.True(t, rm.Validate(sell(10), symbolConfig("AAPL"), pos, 0).Approved())
	assert.Equal(t, ReasonSellExceedsPosition, rm.Validate(sell(11), symbolConfig("AAPL"), pos, 0).Reason)
	assert.Equal(t, ReasonNoPosition, rm.Validate(sell(1), symbolConfig("AAPL"), models.FlatPosition("AAPL"), 0).Reason)
}

func TestRiskInvalidInput(t *testing.T) {
	rm := NewRiskManager()
	flat := models.FlatPosition("AAPL")
	assert.Equal(t, ReasonInvalidQuantity, rm.Validate(buyIntent(0, 100), symbolConfig("AAPL"), flat, 1e9).Reason)
	assert.Equal(t, ReasonInvalidPrice, rm.Validate(buyIntent(1, 0), symbolConfig("AAPL"), flat, 1e9).Reason)
	bad := buyIntent(1, 10)
	bad.Side = "SHORT"
	assert.Equal(t, ReasonInvalidSide, rm.Validate(bad, symbolConfig("AAPL"), flat, 1e9).Reason)
}
