package settlement

import (
	"context"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
)

// PGLedger runs settlement transactions on Postgres, combining the ledger and
// wager repositories on one pgx.Tx.
type PGLedger struct {
	ledger *ledger.Repository
	wagers *wagers.Repository
}

func NewPGLedger(l *ledger.Repository, w *wagers.Repository) *PGLedger {
	return &PGLedger{ledger: l, wagers: w}
}

func (p *PGLedger) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.ledger.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, ledger: p.ledger, wagers: p.wagers})
	})
}

type pgTx struct {
	tx     pgx.Tx
	ledger *ledger.Repository
	wagers *wagers.Repository
}

func (t *pgTx) LockWager(ctx context.Context, id int64) (*wagers.Wager, error) {
	return t.wagers.LockForSettlement(ctx, t.tx, id)
}

func (t *pgTx) EnsureBalance(ctx context.Context, playerID int64) error {
	return t.ledger.EnsureBalance(ctx, t.tx, playerID)
}

func (t *pgTx) BalanceForUpdate(ctx context.Context, playerID int64) (int64, error) {
	return t.ledger.BalanceForUpdate(ctx, t.tx, playerID)
}

func (t *pgTx) ApplyDelta(ctx context.Context, playerID, delta int64) (int64, error) {
	return t.ledger.ApplyDelta(ctx, t.tx, playerID, delta)
}

func (t *pgTx) MarkTerminal(ctx context.Context, id int64, outcome wagers.Outcome, payout, balanceAfter int64, runID string) error {
	return t.wagers.MarkTerminal(ctx, t.tx, id, outcome, payout, balanceAfter, runID)
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr *ledger.Transaction) (int64, error) {
	return t.ledger.AppendTransaction(ctx, t.tx, tr)
}

func (t *pgTx) InsertCorrection(ctx context.Context, c *ledger.Correction) (int64, error) {
	return t.ledger.InsertCorrection(ctx, t.tx, c)
}
