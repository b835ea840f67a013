package models

import "time"

// SourceBreakdown is the per-source contribution to an aggregate.
type SourceBreakdown struct {
	Source        Source  `json:"source"`
	Mean          float64 `json:"mean"`
	Observations  int     `json:"observations"`
	ConfidenceSum float64 `json:"confidence_sum"`
	Weight        float64 `json:"weight"`
}

// AggregatedSentiment is the weighted score for one symbol at one instant.
type AggregatedSentiment struct {
	Symbol           string            `json:"symbol"`
	WeightedScore    float64           `json:"weighted_score"`
	SourceCount      int               `json:"source_count"`
	ObservationCount int               `json:"observation_count"`
	Window           time.Duration     `json:"-"`
	ComputedAt       time.Time         `json:"computed_at"`
	Sources          []SourceBreakdown `json:"sources"`
}

// SentimentSnapshot is a persisted aggregate row used for history queries.
type SentimentSnapshot struct {
	Symbol           string    `json:"symbol"`
	WeightedScore    float64   `json:"weighted_score"`
	SourceCount      int       `json:"source_count"`
	ObservationCount int       `json:"observation_count"`
	ComputedAt       time.Time `json:"computed_at"`
}

// Snapshot flattens an aggregate for storage.
func (a AggregatedSentiment) Snapshot() SentimentSnapshot {
	return SentimentSnapshot{
		Symbol:           a.Symbol,
		WeightedScore:    a.WeightedScore,
		SourceCount:      a.SourceCount,
		ObservationCount: a.ObservationCount,
		ComputedAt:       a.ComputedAt,
	}
}

// ActiveSymbol is an enabled symbol that received observations recently.
type ActiveSymbol struct {
	Symbol             string    `json:"symbol" db:"symbol"`
	SentimentThreshold float64   `json:"sentiment_threshold" db:"sentiment_threshold"`
	Observations       int       `json:"observations" db:"observations"`
	LastObservedAt     time.Time `json:"last_observed_at" db:"last_observed_at"`
}

// SymbolActivity counts recent observations per symbol.
type SymbolActivity struct {
	Symbol         string    `db:"symbol"`
	Observations   int       `db:"observations"`
	LastObservedAt time.Time `db:"last_observed_at"`
}
