// Package settlement applies declared results to pending wagers.
//
// Each wager is settled in its own transaction: the wager row is locked, the
// player balance is read FOR UPDATE, the payout is credited, the wager is
// marked terminal and an audit row is appended. A run that dies half way
// leaves the rest pending, and the next run picks them up. Terminal wagers are
// skipped, so running a round again never pays twice.
package settlement

import (
	"context"

	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/odds"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
)

// RoundStore is the part of the round lifecycle the executor uses.
type RoundStore interface {
	Get(ctx context.Context, id int64) (*rounds.Round, error)
	MarkSettled(ctx context.Context, id int64) (*rounds.Round, error)
}

// WagerStore reads wagers outside of a settlement transaction.
type WagerStore interface {
	Get(ctx context.Context, id int64) (*wagers.Wager, error)
	ListPendingByRound(ctx context.Context, roundID int64) ([]*wagers.Wager, error)
	CountPendingByRound(ctx context.Context, roundID int64) (int, error)
	ListLossesByRound(ctx context.Context, roundID int64) ([]*wagers.Wager, error)
}

// OddsResolver supplies the effective multiplier of a winning wager.
type OddsResolver interface {
	Resolve(ctx context.Context, mode prediction.Mode, p odds.Player) (odds.Resolution, error)
}

// RoundLocker keeps two runs off the same round. Acquire returns
// lock.ErrLocked when the key is already held.
type RoundLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Tx is the write set of one settlement step. Every call shares one database transaction.
type Tx interface {
	LockWager(ctx context.Context, id int64) (*wagers.Wager, error)
	EnsureBalance(ctx context.Context, playerID int64) error
	BalanceForUpdate(ctx context.Context, playerID int64) (int64, error)
	ApplyDelta(ctx context.Context, playerID, delta int64) (int64, error)
	MarkTerminal(ctx context.Context, id int64, outcome wagers.Outcome, payout, balanceAfter int64, runID string) error
	AppendTransaction(ctx context.Context, t *ledger.Transaction) (int64, error)
	InsertCorrection(ctx context.Context, c *ledger.Correction) (int64, error)
}

// Ledger opens settlement transactions. An error from fn rolls back every write.
type Ledger interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier is told about every finished run.
type Notifier interface {
	RunFinished(ctx context.Context, s Summary)
}
