package models

// Requests for the trading HTTP endpoints.

type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type TradeRequest struct {
	Symbol         string   `json:"symbol" validate:"required,symbol"`
	Side           string   `json:"side" validate:"required,oneof=BUY SELL buy sell"`
	Quantity       int64    `json:"quantity" validate:"gt=0"`
	Price          *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	SentimentScore *float64 `json:"sentiment_score,omitempty" validate:"omitempty,gte=-1,lte=1"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,symbol"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type ObservationRequest struct {
	// ID makes a resubmission idempotent; empty means derived from the content.
	ID         string  `json:"id,omitempty" validate:"omitempty,max=128"`
	Symbol     string  `json:"symbol" validate:"required,symbol"`
	Source     string  `json:"source" validate:"required,oneof=twitter reddit news"`
	Sentiment  float64 `json:"sentiment" validate:"gte=-1,lte=1"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	// Timestamp is RFC3339 or unix seconds; empty means now.
	Timestamp string `json:"timestamp,omitempty"`
}
