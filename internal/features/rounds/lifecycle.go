package rounds

import (
	"fmt"

	"serotonyl.ru/settlement-engine/internal/common"
)

// CanTransition allows exactly one step forward.
func CanTransition(from, to State) bool {
	return from >= StateWaiting && from < StateSettled && to == from+1
}

// checkTransition returns a wrapped ErrInvalidStateTransition when from -> to is not allowed.
func checkTransition(id int64, from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: round %d is %s, cannot move to %s", common.ErrInvalidStateTransition, id, from, to)
	}
	return nil
}
