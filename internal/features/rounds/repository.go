package rounds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/settlement-engine/internal/common"
)

const selectRound = `
	SELECT id, name, category, state, declared_result, outcomes,
	       created_at, updated_at, declared_at, settled_at
	FROM rounds
`

// Repository persists rounds. State changes are compare-and-set on the current state.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanRound(row pgx.Row) (*Round, error) {
	var (
		r     Round
		state string
	)
	err := row.Scan(
		&r.ID, &r.Name, &r.Category, &state, &r.DeclaredResult, &r.Outcomes,
		&r.CreatedAt, &r.UpdatedAt, &r.DeclaredAt, &r.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	s, ok := ParseState(state)
	if !ok {
		return nil, fmt.Errorf("round %d has unknown state %q", r.ID, state)
	}
	r.State = s
	return &r, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Round, error) {
	round, err := scanRound(r.db.QueryRow(ctx, selectRound+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round %d: %w", id, err)
	}
	return round, nil
}

// Transition moves the round from -> to. It reports false when the round was
// not in state from any more.
func (r *Repository) Transition(ctx context.Context, id int64, from, to State) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rounds
		SET state = $3, updated_at = NOW(),
		    settled_at = CASE WHEN $3 = 'settled' THEN NOW() ELSE settled_at END
		WHERE id = $1 AND state = $2
	`, id, from.String(), to.String())
	if err != nil {
		return false, fmt.Errorf("transition round %d to %s: %w", id, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetResult stores the declared result and moves the round to resulted.
// It only matches a closed round without a result, so the result is written once.
func (r *Repository) SetResult(ctx context.Context, id int64, result string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rounds
		SET declared_result = $2, state = 'resulted', declared_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = 'closed' AND declared_result IS NULL
	`, id, result)
	if err != nil {
		return false, fmt.Errorf("declare result for round %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByState returns rounds in state whose last change happened before the cutoff.
func (r *Repository) ListByState(ctx context.Context, state State, before time.Time, limit int) ([]*Round, error) {
	rows, err := r.db.Query(ctx, selectRound+`
		WHERE state = $1 AND updated_at <= $2
		ORDER BY updated_at
		LIMIT $3
	`, state.String(), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s rounds: %w", state, err)
	}
	defer rows.Close()

	var out []*Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, round)
	}
	return out, rows.Err()
}
