package usecase

import (
	"math"

	"SentiTrade/internal/domain/models"
)

// RiskVerdict is the outcome of a risk check.
type RiskVerdict string

const (
	RiskApproved RiskVerdict = "RISK_APPROVED"
	RiskRejected RiskVerdict = "RISK_REJECTED"
	// RiskHold means the sized quantity rounded down to zero shares.
	RiskHold RiskVerdict = "HOLD"
)

// Rejection reasons.
const (
	ReasonInvalidQuantity      = "invalid_quantity"
	ReasonInvalidPrice         = "invalid_price"
	ReasonInvalidSide          = "invalid_side"
	ReasonPositionLimitReached = "position_limit_reached"
	ReasonInsufficientEquity   = "insufficient_equity"
	ReasonBelowOneShare        = "headroom_below_one_share"
	ReasonNoPosition           = "no_position"
	ReasonSellExceedsPosition  = "sell_exceeds_position"
)

// RiskResult carries the possibly resized intent.
type RiskResult struct {
	Verdict RiskVerdict
	Intent  models.TradeIntent
	Reason  string
	// Capped is set when a BUY was sized down to fit the headroom.
	Capped bool
}

// Approved reports whether the intent may be submitted.
func (r RiskResult) Approved() bool { return r.Verdict == RiskApproved }

// RiskManager enforces size caps and the no-short rule.
type RiskManager struct{}

func NewRiskManager() *RiskManager { return &RiskManager{} }

// Validate checks intent against cfg and the current position. equity is the
// buying power still available; math.Inf(1) disables that bound.
func (RiskManager) Validate(intent models.TradeIntent, cfg models.SymbolConfig, pos models.Position, equity float64) RiskResult {
	reject := func(reason string) RiskResult {
		return RiskResult{Verdict: RiskRejected, Intent: intent, Reason: reason}
	}
	if intent.Quantity <= 0 {
		return reject(ReasonInvalidQuantity)
	}
	if math.IsNaN(intent.Price) || intent.Price <= 0 {
		return reject(ReasonInvalidPrice)
	}

	switch intent.Side {
	case models.SideBuy:
		headroom := cfg.MaxPositionSize - pos.Exposure(intent.Price)
		reason := ReasonPositionLimitReached
		if equity < headroom {
			headroom = equity
			reason = ReasonInsufficientEquity
		}
		if headroom <= 0 {
			return reject(reason)
		}
		maxQty := int64(math.Floor(headroom/intent.Price + 1e-9))
		if maxQty <= 0 {
			return RiskResult{Verdict: RiskHold, Intent: intent, Reason: ReasonBelowOneShare}
		}
		out := RiskResult{Verdict: RiskApproved, Intent: intent}
		if intent.Quantity > maxQty {
			out.Intent.Quantity = maxQty
			out.Capped = true
		}
		return out

	case models.SideSell:
		if pos.Quantity <= 0 {
			return reject(ReasonNoPosition)
		}
		if intent.Quantity > pos.Quantity {
			return reject(ReasonSellExceedsPosition)
		}
		return RiskResult{Verdict: RiskApproved, Intent: intent}
	}
	return reject(ReasonInvalidSide)
}
