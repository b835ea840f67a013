package usecase

import (
	"context"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultWeights = models.Weights{0.4, 0.3, 0.3}

func obs(src models.Source, sentiment, confidence float64, at time.Time) models.SentimentObservation {
	return models.SentimentObservation{Symbol: "AAPL", Source: src, Sentiment: sentiment, Confidence: confidence, Timestamp: at}
}

func TestAggregateExcludesMissingSources(t *testing.T) {
	now := time.Now()
	agg, err := ComputeAggregate("AAPL", []models.SentimentObservation{
		obs(models.SourceTwitter, 0.8, 1.0, now),
	}, defaultWeights, now.Add(-time.Hour), now)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, agg.WeightedScore, 1e-9)
	assert.Equal(t, 1, agg.SourceCount)
	assert.Equal(t, 1, agg.ObservationCount)
}

func TestAggregateWeightsAndConfidence(t *testing.T) {
	now := time.Now()
	agg, err := ComputeAggregate("AAPL", []models.SentimentObservation{
		obs(models.SourceTwitter, 1.0, 0.5, now),
		obs(models.SourceTwitter, 0.0, 0.5, now),
		obs(models.SourceReddit, -0.5, 1.0, now),
		obs(models.SourceNews, 0.4, 0.2, now),
	}, defaultWeights, now.Add(-time.Hour), now)
	require.NoError(t, err)

	// twitter mean 0.5, reddit -0.5, news 0.4
	want := (0.5*0.4 + -0.5*0.3 + 0.4*0.3) / 1.0
	assert.InDelta(t, want, agg.WeightedScore, 1e-9)
	assert.Equal(t, 3, agg.SourceCount)
	assert.Len(t, agg.Sources, 3)
}

func TestAggregateInsufficientData(t *testing.T) {
	now := time.Now()
	cases := map[string][]models.SentimentObservation{
		"empty":           nil,
		"outside window":  {obs(models.SourceNews, 0.9, 1, now.Add(-2*time.Hour))},
		"zero confidence": {obs(models.SourceNews, 0.9, 0, now)},
		"other symbol":    {{Symbol: "TSLA", Source: models.SourceNews, Sentiment: 0.9, Confidence: 1, Timestamp: now}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeAggregate("AAPL", in, defaultWeights, now.Add(-time.Hour), now)
			assert.ErrorIs(t, err, models.ErrInsufficientData)
		})
	}
}

func TestAggregateZeroWeightPresentSources(t *testing.T) {
	now := time.Now()
	_, err := ComputeAggregate("AAPL", []models.SentimentObservation{
		obs(models.SourceReddit, 0.9, 1, now),
	}, models.Weights{1, 0, 0}, now.Add(-time.Hour), now)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestAggregateScoreStaysInRange(t *testing.T) {
	now := time.Now()
	agg, err := ComputeAggregate("AAPL", []models.SentimentObservation{
		obs(models.SourceTwitter, 1, 1, now),
		obs(models.SourceReddit, 1, 1, now),
		obs(models.SourceNews, 1, 1, now),
	}, models.Weights{1, 1, 1}, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.LessOrEqual(t, agg.WeightedScore, 1.0)
	assert.GreaterOrEqual(t, agg.WeightedScore, -1.0)
}

func TestSentimentAggregatorUsesStoreWindow(t *testing.T) {
	f := newFixture(t, symbolConfig("AAPL"))
	f.observe(t, "AAPL", models.SourceNews, -0.7, 1)

	agg, err := f.aggregator.Aggregate(context.Background(), symbolConfig("AAPL"), time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, -0.7, agg.WeightedScore, 1e-9)
	assert.Equal(t, time.Hour, agg.Window)
}
