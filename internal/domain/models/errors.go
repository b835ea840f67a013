package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means no usable observation fell inside the window.
	ErrInsufficientData = errors.New("insufficient sentiment data")
	// ErrRiskRejected marks an intent the risk manager refused.
	ErrRiskRejected = errors.New("risk rejected")
	// ErrConfiguration marks an invalid or missing symbol configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrBrokerTransient marks a broker failure worth one retry.
	ErrBrokerTransient = errors.New("broker transient error")
	// ErrBrokerPermanent marks a broker failure that must not be retried.
	ErrBrokerPermanent = errors.New("broker permanent error")
	// ErrLockTimeout is returned when the per-symbol lock could not be taken in time.
	ErrLockTimeout = errors.New("symbol lock timeout")
	ErrNotFound    = errors.New("not found")
	// ErrInvalidTransition is returned for a trade status change outside the table.
	ErrInvalidTransition  = errors.New("invalid trade status transition")
	ErrInvalidObservation = errors.New("invalid observation")
	ErrNoPrice            = errors.New("no market price")
	// ErrNegativePosition is returned when a fill would take a position below zero.
	ErrNegativePosition = errors.New("position would become negative")
	// ErrReconciliationFault means the broker settled a fill the position
	// book could not absorb. The book and the broker disagree until an
	// operator corrects it.
	ErrReconciliationFault = errors.New("reconciliation fault")
)

// RiskError carries the rule that rejected an intent.
type RiskError struct {
	Reason string
}

func (e *RiskError) Error() string { return "risk rejected: " + e.Reason }

// Is lets errors.Is(err, ErrRiskRejected) match.
func (e *RiskError) Is(target error) bool { return target == ErrRiskRejected }

// NewRiskError builds a RiskError for reason.
func NewRiskError(reason string) *RiskError { return &RiskError{Reason: reason} }

// BrokerErrorKind classifies broker failures.
type BrokerErrorKind string

const (
	BrokerTransient BrokerErrorKind = "transient"
	BrokerPermanent BrokerErrorKind = "permanent"
)

// BrokerError wraps a failure returned by the execution venue.
type BrokerError struct {
	Kind BrokerErrorKind
	Err  error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Kind, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

func (e *BrokerError) Is(target error) bool {
	switch target {
	case ErrBrokerTransient:
		return e.Kind == BrokerTransient
	case ErrBrokerPermanent:
		return e.Kind == BrokerPermanent
	}
	return false
}

// TransientBrokerError wraps err as retryable.
func TransientBrokerError(err error) error {
	return &BrokerError{Kind: BrokerTransient, Err: err}
}

// PermanentBrokerError wraps err as final.
func PermanentBrokerError(err error) error {
	return &BrokerError{Kind: BrokerPermanent, Err: err}
}
