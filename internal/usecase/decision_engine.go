package usecase

import "SentiTrade/internal/domain/models"

// Decision is the engine's verdict plus the reason it was reached.
type Decision struct {
	Action models.Action
	State  models.PositionState
	Reason string
}

// DecisionEngine maps an aggregate and the current position onto an action.
// It is long-only: a bearish signal while flat holds.
type DecisionEngine struct{}

func NewDecisionEngine() *DecisionEngine { return &DecisionEngine{} }

func (DecisionEngine) Decide(agg models.AggregatedSentiment, pos models.Position, cfg models.SymbolConfig) Decision {
	state := pos.State()
	if !cfg.IsActive {
		return Decision{Action: models.ActionHold, State: state, Reason: "symbol inactive"}
	}
	if pos.Quantity < 0 {
		return Decision{Action: models.ActionHold, State: state, Reason: "negative position"}
	}

	t := cfg.SentimentThreshold
	score := agg.WeightedScore
	switch state {
	case models.StateFlat:
		if score >= t {
			return Decision{Action: models.ActionBuy, State: state, Reason: "score at or above threshold"}
		}
		if score <= -t {
			return Decision{Action: models.ActionHold, State: state, Reason: "short entry disallowed"}
		}
	case models.StateLong:
		if score <= -t {
			return Decision{Action: models.ActionSell, State: state, Reason: "score at or below -threshold"}
		}
		if score >= t {
			return Decision{Action: models.ActionHold, State: state, Reason: "already long"}
		}
	}
	return Decision{Action: models.ActionHold, State: state, Reason: "inside dead zone"}
}
