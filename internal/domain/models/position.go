package models

import (
	"fmt"
	"time"
)

// PositionState is derived from quantity.
type PositionState string

const (
	StateFlat PositionState = "FLAT"
	StateLong PositionState = "LONG"
)

// Position is the held quantity of one symbol. AveragePrice is meaningful
// only while Quantity > 0 and is zero otherwise.
type Position struct {
	Symbol         string    `json:"symbol" db:"symbol"`
	Quantity       int64     `json:"quantity" db:"quantity"`
	AveragePrice   float64   `json:"average_price" db:"average_price"`
	LastKnownPrice float64   `json:"last_known_price" db:"last_known_price"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// FlatPosition is the zero position for symbol.
func FlatPosition(symbol string) Position {
	return Position{Symbol: symbol}
}

// State maps quantity onto FLAT or LONG.
func (p Position) State() PositionState {
	if p.Quantity > 0 {
		return StateLong
	}
	return StateFlat
}

// HasCost reports whether AveragePrice is defined.
func (p Position) HasCost() bool { return p.Quantity > 0 }

// Exposure is quantity marked at price.
func (p Position) Exposure(price float64) float64 {
	return float64(p.Quantity) * price
}

// MarketValue uses the last known price.
func (p Position) MarketValue() float64 { return p.Exposure(p.LastKnownPrice) }

// UnrealizedPnL is (last_known_price - average_price) * quantity, zero when flat
// or when no price has been seen.
func (p Position) UnrealizedPnL() float64 {
	if !p.HasCost() || p.LastKnownPrice <= 0 {
		return 0
	}
	return (p.LastKnownPrice - p.AveragePrice) * float64(p.Quantity)
}

// ApplyFill returns the position after a fill. A SELL larger than the held
// quantity is refused and the receiver is returned unchanged.
func (p Position) ApplyFill(side Side, qty int64, price float64, at time.Time) (Position, error) {
	if qty <= 0 {
		return p, fmt.Errorf("apply fill: quantity %d must be positive", qty)
	}
	if price <= 0 {
		return p, fmt.Errorf("apply fill: price %v must be positive", price)
	}

	next := p
	switch side {
	case SideBuy:
		oldQty := float64(p.Quantity)
		oldAvg := p.AveragePrice
		if p.Quantity <= 0 {
			oldQty, oldAvg = 0, 0
		}
		next.Quantity = p.Quantity + qty
		next.AveragePrice = (oldAvg*oldQty + price*float64(qty)) / (oldQty + float64(qty))
	case SideSell:
		if qty > p.Quantity {
			return p, fmt.Errorf("%w: sell %d of %s, holding %d", ErrNegativePosition, qty, p.Symbol, p.Quantity)
		}
		next.Quantity = p.Quantity - qty
		if next.Quantity == 0 {
			next.AveragePrice = 0
		}
	default:
		return p, fmt.Errorf("apply fill: unknown side %q", side)
	}
	next.LastKnownPrice = price
	next.UpdatedAt = at
	return next, nil
}

// Fill is a broker-confirmed execution.
type Fill struct {
	Symbol   string
	Side     Side
	Quantity int64
	Price    float64
	OrderID  string
	FilledAt time.Time
}
