package models

import "time"

// Tick is one last-trade print from the market data feed.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
