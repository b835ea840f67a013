package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
)

// SentimentAggregator computes the confidence-weighted score for a symbol
// from the observations inside a window.
type SentimentAggregator struct {
	store drepo.SentimentStore
	now   func() time.Time
}

func NewSentimentAggregator(store drepo.SentimentStore) *SentimentAggregator {
	return &SentimentAggregator{store: store, now: time.Now}
}

// Aggregate fetches the window and combines it with cfg's weights.
func (a *SentimentAggregator) Aggregate(ctx context.Context, cfg models.SymbolConfig, window time.Duration) (models.AggregatedSentiment, error) {
	now := a.now()
	since := now.Add(-window)
	obs, err := a.store.FetchObservations(ctx, cfg.Symbol, since)
	if err != nil {
		return models.AggregatedSentiment{}, fmt.Errorf("fetch observations %s: %w", cfg.Symbol, err)
	}
	agg, err := ComputeAggregate(cfg.Symbol, obs, cfg.Weights, since, now)
	if err != nil {
		return models.AggregatedSentiment{}, err
	}
	agg.Window = window
	return agg, nil
}

type sourceAcc struct {
	num, den float64
	n        int
}

// ComputeAggregate is the pure aggregation step. Observations for another
// symbol or older than since are ignored. A source with no usable
// observations is left out of both numerator and denominator.
func ComputeAggregate(symbol string, obs []models.SentimentObservation, weights models.Weights, since, now time.Time) (models.AggregatedSentiment, error) {
	var accs [models.NumSources]sourceAcc
	total := 0
	for _, o := range obs {
		if o.Symbol != symbol || o.Timestamp.Before(since) || !o.Source.Valid() {
			continue
		}
		acc := &accs[o.Source]
		acc.num += o.Sentiment * o.Confidence
		acc.den += o.Confidence
		acc.n++
		total++
	}

	out := models.AggregatedSentiment{Symbol: symbol, ComputedAt: now}
	var num, wsum float64
	for _, s := range models.AllSources() {
		acc := accs[s]
		// zero total confidence leaves the mean undefined
		if acc.n == 0 || acc.den <= 0 {
			continue
		}
		mean := acc.num / acc.den
		w := weights.Of(s)
		out.Sources = append(out.Sources, models.SourceBreakdown{
			Source:        s,
			Mean:          mean,
			Observations:  acc.n,
			ConfidenceSum: acc.den,
			Weight:        w,
		})
		out.SourceCount++
		out.ObservationCount += acc.n
		num += mean * w
		wsum += w
	}

	if out.SourceCount == 0 {
		return models.AggregatedSentiment{}, fmt.Errorf("%s: %w (%d observations in window)", symbol, models.ErrInsufficientData, total)
	}
	if wsum <= 0 {
		return models.AggregatedSentiment{}, fmt.Errorf("%s: %w (all present sources have zero weight)", symbol, models.ErrInsufficientData)
	}

	out.WeightedScore = math.Max(-1, math.Min(1, num/wsum))
	return out, nil
}
