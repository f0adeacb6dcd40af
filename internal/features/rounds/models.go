// Package rounds owns the market/match lifecycle that gates settlement.
// models.go describes rounds and their states.
package rounds

import (
	"time"

	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// State of a round. Rounds only ever move forward through the list below.
type State int

const (
	StateWaiting State = iota
	StateOpen
	StateClosed
	StateResulted
	StateSettled
)

var stateNames = [...]string{"waiting", "open", "closed", "resulted", "settled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState maps a stored state name back to State.
func ParseState(s string) (State, bool) {
	for i, name := range stateNames {
		if name == s {
			return State(i), true
		}
	}
	return 0, false
}

// Round is a market draw or a binary match.
type Round struct {
	ID             int64               `db:"id"`
	Name           string              `db:"name"`
	Category       prediction.Category `db:"category"`
	State          State               `db:"state"`
	DeclaredResult *string             `db:"declared_result"`
	Outcomes       []string            `db:"outcomes"` // allowed labels, binary rounds only
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
	DeclaredAt     *time.Time          `db:"declared_at"`
	SettledAt      *time.Time          `db:"settled_at"`
}

// Result returns the declared result or "" when none is set.
func (r *Round) Result() string {
	if r.DeclaredResult == nil {
		return ""
	}
	return *r.DeclaredResult
}
