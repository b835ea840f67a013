package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Action is the decision engine output.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side converts a trading action to an order side. HOLD has none.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	}
	return "", false
}

// TradeStatus is the lifecycle state of a TradeRecord.
type TradeStatus string

const (
	StatusProposed     TradeStatus = "PROPOSED"
	StatusRiskApproved TradeStatus = "RISK_APPROVED"
	StatusRiskRejected TradeStatus = "RISK_REJECTED"
	StatusSubmitted    TradeStatus = "SUBMITTED"
	StatusFilled       TradeStatus = "FILLED"
	StatusCancelled    TradeStatus = "CANCELLED"
	StatusRejected     TradeStatus = "REJECTED"
)

// PersistedStatus is the coarse status stored in the trades table.
type PersistedStatus string

const (
	PersistedPending   PersistedStatus = "PENDING"
	PersistedFilled    PersistedStatus = "FILLED"
	PersistedCancelled PersistedStatus = "CANCELLED"
	PersistedRejected  PersistedStatus = "REJECTED"
)

var transitions = map[TradeStatus][]TradeStatus{
	StatusProposed:     {StatusRiskApproved, StatusRiskRejected},
	StatusRiskApproved: {StatusSubmitted, StatusRejected},
	StatusSubmitted:    {StatusFilled, StatusCancelled, StatusRejected},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to TradeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TradeStatus) Terminal() bool { return len(transitions[s]) == 0 }

// Persisted collapses s onto the stored enum.
func (s TradeStatus) Persisted() PersistedStatus {
	switch s {
	case StatusFilled:
		return PersistedFilled
	case StatusCancelled:
		return PersistedCancelled
	case StatusRejected, StatusRiskRejected:
		return PersistedRejected
	default:
		return PersistedPending
	}
}

// Origin tells whether a trade came from the bot or the API.
type Origin string

const (
	OriginBot    Origin = "bot"
	OriginManual Origin = "manual"
)

// TradeIntent is a proposed order before risk checks.
type TradeIntent struct {
	Symbol         string
	Side           Side
	Quantity       int64
	Price          float64
	SentimentScore *float64
	Origin         Origin
}

// Notional is quantity * price.
func (i TradeIntent) Notional() float64 { return float64(i.Quantity) * i.Price }

// TradeRecord is the durable trail of one intent through risk and execution.
type TradeRecord struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	Symbol         string      `json:"symbol" db:"symbol"`
	Side           Side        `json:"side" db:"side"`
	Quantity       int64       `json:"quantity" db:"quantity"`
	Price          float64     `json:"price" db:"price"`
	SentimentScore *float64    `json:"sentiment_score,omitempty" db:"sentiment_score"`
	Origin         Origin      `json:"origin" db:"origin"`
	Status         TradeStatus `json:"status" db:"stage"`
	Reason         string      `json:"reason,omitempty" db:"reason"`
	BrokerOrderID  string      `json:"broker_order_id,omitempty" db:"broker_order_id"`
	FilledQuantity int64       `json:"filled_quantity" db:"filled_quantity"`
	FillPrice      float64     `json:"fill_price,omitempty" db:"fill_price"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// NewTradeRecord starts a record in PROPOSED.
func NewTradeRecord(intent TradeIntent, now time.Time) *TradeRecord {
	return &TradeRecord{
		ID:             uuid.New(),
		Symbol:         intent.Symbol,
		Side:           intent.Side,
		Quantity:       intent.Quantity,
		Price:          intent.Price,
		SentimentScore: intent.SentimentScore,
		Origin:         intent.Origin,
		Status:         StatusProposed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ClientOrderID is the idempotency key sent to the broker.
func (r *TradeRecord) ClientOrderID() string { return r.ID.String() }

// Transition moves the record to next, refusing moves outside the table.
// A terminal record is never changed.
func (r *TradeRecord) Transition(next TradeStatus, reason string, now time.Time) error {
	if !CanTransition(r.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	if reason != "" {
		r.Reason = reason
	}
	r.UpdatedAt = now
	return nil
}

// OrderRequest is what the broker adapter receives.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      int64
}

// OrderState is the broker-side lifecycle of an order.
type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderFilled    OrderState = "filled"
	OrderCancelled OrderState = "cancelled"
	OrderRejected  OrderState = "rejected"
)

// OrderUpdate is the broker's view of an order at one moment.
type OrderUpdate struct {
	OrderID        string
	ClientOrderID  string
	State          OrderState
	FilledQuantity int64
	FillPrice      float64
	Reason         string
	UpdatedAt      time.Time
}
