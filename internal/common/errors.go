// Package common defines the errors shared by every settlement feature.
// Handlers and the operator bot tell failure kinds apart with errors.Is
// and pick a response code or a message from them.
package common

import "errors"

// Round lifecycle errors
var (
	// ErrRoundNotFound means there is no round with that id
	ErrRoundNotFound = errors.New("round not found")
	// ErrInvalidStateTransition means the round is not in a state that allows the operation
	ErrInvalidStateTransition = errors.New("invalid round state transition")
	// ErrResultAlreadyDeclared means the declared result is immutable and already set
	ErrResultAlreadyDeclared = errors.New("round result already declared")
	// ErrInvalidResult means the declared result does not fit the round category
	ErrInvalidResult = errors.New("invalid declared result")
)

// Wager and evaluation errors
var (
	// ErrWagerNotFound means there is no wager with that id
	ErrWagerNotFound = errors.New("wager not found")
	// ErrMalformedPrediction means the prediction string cannot be evaluated.
	// The wager is settled as a loss.
	ErrMalformedPrediction = errors.New("malformed prediction")
	// ErrStandaloneOnly means the wager belongs to a round and must be settled through it
	ErrStandaloneOnly = errors.New("wager is attached to a round")
)

// Odds errors
var (
	// ErrOddsNotConfigured means no config row was found and the hard-coded fallback was used
	ErrOddsNotConfigured = errors.New("odds not configured")
	// ErrPayoutOverflow means stake * multiplier does not fit into int64
	ErrPayoutOverflow = errors.New("payout overflow")
)

// Ledger and settlement run errors
var (
	// ErrBalanceConflict is a transient lock/serialization conflict on a balance row
	ErrBalanceConflict = errors.New("balance mutation conflict")
	// ErrBalanceNotFound means the player has no balance row
	ErrBalanceNotFound = errors.New("balance not found")
	// ErrSettlementInProgress means another run holds the round lock
	ErrSettlementInProgress = errors.New("settlement already in progress for round")
	// ErrAlreadyCorrected means a correction for this wager was already recorded
	ErrAlreadyCorrected = errors.New("wager already corrected")
)
