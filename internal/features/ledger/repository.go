package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/settlement-engine/internal/common"
)

// Postgres error codes treated as a transient balance conflict.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Repository works with the balances, transactions and wager_corrections tables.
// Writes take the caller's pgx.Tx so a wager update and its audit row commit together.
type Repository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository creates the ledger repository. lockTimeout bounds row lock
// waits inside InTx, zero keeps the server default.
func NewRepository(db *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{db: db, lockTimeout: lockTimeout}
}

// MapError turns lock and serialization failures into common.ErrBalanceConflict.
func MapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", common.ErrBalanceConflict, pgErr.Message)
		}
	}
	return err
}

// InTx runs fn inside one database transaction. fn's error rolls everything back.
func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return MapError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return MapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// GetBalance reads a balance outside of any transaction.
func (r *Repository) GetBalance(ctx context.Context, playerID int64) (*Balance, error) {
	var b Balance
	err := r.db.QueryRow(ctx, `
		SELECT player_id, balance, total_won, updated_at
		FROM balances WHERE player_id = $1
	`, playerID).Scan(&b.PlayerID, &b.Balance, &b.TotalWon, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrBalanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// EnsureBalance creates a zero balance row when the player has none.
func (r *Repository) EnsureBalance(ctx context.Context, tx pgx.Tx, playerID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (player_id, balance, total_won)
		VALUES ($1, 0, 0)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	return nil
}

// BalanceForUpdate reads the balance and locks the row until tx ends.
func (r *Repository) BalanceForUpdate(ctx context.Context, tx pgx.Tx, playerID int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM balances WHERE player_id = $1 FOR UPDATE`, playerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: player %d", common.ErrBalanceNotFound, playerID)
	}
	if err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta adds delta to the balance and returns the new value.
func (r *Repository) ApplyDelta(ctx context.Context, tx pgx.Tx, playerID, delta int64) (int64, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance + $2,
		    total_won = total_won + GREATEST($2, 0),
		    updated_at = NOW()
		WHERE player_id = $1
		RETURNING balance
	`, playerID, delta).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: player %d", common.ErrBalanceNotFound, playerID)
	}
	if err != nil {
		return 0, fmt.Errorf("apply delta: %w", err)
	}
	return after, nil
}

// AppendTransaction inserts one audit row and returns its id.
func (r *Repository) AppendTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions
			(player_id, wager_id, delta, balance_after, tx_type, run_id, corrects_wager_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, t.PlayerID, t.WagerID, t.Delta, t.BalanceAfter, t.Type, t.RunID, t.CorrectsWagerID, t.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	return id, nil
}

// InsertCorrection claims the one correction slot of a wager.
// It returns common.ErrAlreadyCorrected when the slot is taken.
func (r *Repository) InsertCorrection(ctx context.Context, tx pgx.Tx, c *Correction) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO wager_corrections (wager_id, run_id, payout, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wager_id) DO NOTHING
		RETURNING id
	`, c.WagerID, c.RunID, c.Payout, c.Reason).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: wager %d", common.ErrAlreadyCorrected, c.WagerID)
	}
	if err != nil {
		return 0, fmt.Errorf("insert correction: %w", err)
	}
	return id, nil
}

// ListByWager returns the audit rows caused by or correcting a wager.
func (r *Repository) ListByWager(ctx context.Context, wagerID int64) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, player_id, wager_id, delta, balance_after, tx_type, run_id,
		       corrects_wager_id, description, created_at
		FROM transactions
		WHERE wager_id = $1 OR corrects_wager_id = $1
		ORDER BY id
	`, wagerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.PlayerID, &t.WagerID, &t.Delta, &t.BalanceAfter, &t.Type, &t.RunID,
			&t.CorrectsWagerID, &t.Description, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
