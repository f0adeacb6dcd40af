// Package ledger keeps player balances and the append-only audit trail of
// every balance mutation made by settlement.
package ledger

import "time"

// Balance is one player's row in balances.
type Balance struct {
	PlayerID  int64     `db:"player_id"`
	Balance   int64     `db:"balance"`   // minor units
	TotalWon  int64     `db:"total_won"` // sum of settlement credits
	UpdatedAt time.Time `db:"updated_at"`
}

// Transaction is one audit row. Rows are inserted and never updated or deleted.
type Transaction struct {
	ID              int64     `db:"id"`
	PlayerID        int64     `db:"player_id"`
	WagerID         int64     `db:"wager_id"`
	Delta           int64     `db:"delta"`
	BalanceAfter    int64     `db:"balance_after"`
	Type            string    `db:"tx_type"`
	RunID           string    `db:"run_id"`
	CorrectsWagerID *int64    `db:"corrects_wager_id"`
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
}

// Transaction types written by the engine.
const (
	TxTypeSettlementWin        = "settlement_win"
	TxTypeSettlementCorrection = "settlement_correction"
)

// Correction records that a settled wager was re-evaluated and paid.
// At most one exists per wager.
type Correction struct {
	ID        int64     `db:"id"`
	WagerID   int64     `db:"wager_id"`
	RunID     string    `db:"run_id"`
	Payout    int64     `db:"payout"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
