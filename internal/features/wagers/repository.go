package wagers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/settlement-engine/internal/common"
)

const selectWager = `
	SELECT w.id, w.player_id, p.subadmin_id, w.round_id, w.mode, w.prediction,
	       w.stake, w.outcome, w.payout, w.balance_after, w.settled_at,
	       w.settlement_run, w.created_at
	FROM wagers w
	JOIN players p ON p.id = w.player_id
`

// Repository reads wagers and writes their terminal outcome.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanWager(row pgx.Row) (*Wager, error) {
	var w Wager
	err := row.Scan(
		&w.ID, &w.PlayerID, &w.SubadminID, &w.RoundID, &w.Mode, &w.Prediction,
		&w.Stake, &w.Outcome, &w.Payout, &w.BalanceAfter, &w.SettledAt,
		&w.SettlementRun, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Wager, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wagers: %w", err)
	}
	defer rows.Close()

	var out []*Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Get returns one wager by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Wager, error) {
	w, err := scanWager(r.db.QueryRow(ctx, selectWager+` WHERE w.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWagerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wager %d: %w", id, err)
	}
	return w, nil
}

// ListPendingByRound returns every pending wager of a round, oldest first.
func (r *Repository) ListPendingByRound(ctx context.Context, roundID int64) ([]*Wager, error) {
	return r.list(ctx, selectWager+`
		WHERE w.round_id = $1 AND w.outcome = 'pending'
		ORDER BY w.id
	`, roundID)
}

// ListLossesByRound returns the wagers of a round that were settled as a loss.
func (r *Repository) ListLossesByRound(ctx context.Context, roundID int64) ([]*Wager, error) {
	return r.list(ctx, selectWager+`
		WHERE w.round_id = $1 AND w.outcome = 'loss'
		ORDER BY w.id
	`, roundID)
}

func (r *Repository) CountPendingByRound(ctx context.Context, roundID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM wagers WHERE round_id = $1 AND outcome = 'pending'`, roundID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending wagers: %w", err)
	}
	return n, nil
}

// LockForSettlement re-reads the wager inside tx and holds its row lock until commit.
func (r *Repository) LockForSettlement(ctx context.Context, tx pgx.Tx, id int64) (*Wager, error) {
	w, err := scanWager(tx.QueryRow(ctx, selectWager+` WHERE w.id = $1 FOR UPDATE OF w`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWagerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wager %d: %w", id, err)
	}
	return w, nil
}

// MarkTerminal writes the outcome once. The update only matches a pending row.
func (r *Repository) MarkTerminal(ctx context.Context, tx pgx.Tx, id int64, outcome Outcome, payout, balanceAfter int64, runID string) error {
	if !outcome.Terminal() {
		return fmt.Errorf("outcome %q is not terminal", outcome)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE wagers
		SET outcome = $2, payout = $3, balance_after = $4,
		    settled_at = NOW(), settlement_run = $5
		WHERE id = $1 AND outcome = 'pending'
	`, id, string(outcome), payout, balanceAfter, runID)
	if err != nil {
		return fmt.Errorf("mark wager %d %s: %w", id, outcome, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wager %d is no longer pending", id)
	}
	return nil
}
