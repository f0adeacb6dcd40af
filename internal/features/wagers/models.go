// Package wagers stores player wagers and their terminal outcomes.
package wagers

import (
	"time"

	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// Outcome of a wager. win and loss are terminal and never change afterwards.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
)

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool { return o == OutcomeWin || o == OutcomeLoss }

// Wager is one row of the wagers table joined with the owner's subadmin.
// RoundID is nil for standalone games settled one by one.
type Wager struct {
	ID            int64           `db:"id"`
	PlayerID      int64           `db:"player_id"`
	SubadminID    *int64          `db:"subadmin_id"`
	RoundID       *int64          `db:"round_id"`
	Mode          prediction.Mode `db:"mode"`
	Prediction    string          `db:"prediction"`
	Stake         int64           `db:"stake"` // minor units; per combination for crossing
	Outcome       Outcome         `db:"outcome"`
	Payout        int64           `db:"payout"`
	BalanceAfter  *int64          `db:"balance_after"`
	SettledAt     *time.Time      `db:"settled_at"`
	SettlementRun *string         `db:"settlement_run"`
	CreatedAt     time.Time       `db:"created_at"`
}
