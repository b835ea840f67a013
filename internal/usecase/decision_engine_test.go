package usecase

import (
	"testing"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	flat := models.FlatPosition("AAPL")
	long := models.Position{Symbol: "AAPL", Quantity: 10, AveragePrice: 150}
	cfg := symbolConfig("AAPL")

	cases := []struct {
		name  string
		score float64
		pos   models.Position
		want  models.Action
	}{
		{"flat at threshold buys", 0.6, flat, models.ActionBuy},
		{"flat just below threshold holds", 0.59, flat, models.ActionHold},
		{"flat bearish holds", -0.9, flat, models.ActionHold},
		{"long bearish at threshold sells", -0.6, long, models.ActionSell},
		{"long slightly bearish holds", -0.59, long, models.ActionHold},
		{"long bullish holds", 0.9, long, models.ActionHold},
		{"flat dead zone holds", 0, flat, models.ActionHold},
	}
	engine := NewDecisionEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := engine.Decide(models.AggregatedSentiment{Symbol: "AAPL", WeightedScore: tc.score}, tc.pos, cfg)
			assert.Equal(t, tc.want, d.Action)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDecideInactiveSymbolHolds(t *testing.T) {
	cfg := symbolConfig("AAPL")
	cfg.IsActive = false
	d := NewDecisionEngine().Decide(models.AggregatedSentiment{WeightedScore: 1}, models.FlatPosition("AAPL"), cfg)
	assert.Equal(t, models.ActionHold, d.Action)
}
