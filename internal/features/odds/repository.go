package odds

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// Repository reads odds_configs and player_discounts. Both tables are written
// by operator tooling, the engine only reads them.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SubadminMultiplier(ctx context.Context, mode prediction.Mode, subadminID int64) (int64, bool, error) {
	return r.multiplier(ctx, `
		SELECT multiplier FROM odds_configs
		WHERE mode = $1 AND subadmin_id = $2 AND is_active
	`, string(mode), subadminID)
}

func (r *Repository) PlatformMultiplier(ctx context.Context, mode prediction.Mode) (int64, bool, error) {
	return r.multiplier(ctx, `
		SELECT multiplier FROM odds_configs
		WHERE mode = $1 AND subadmin_id IS NULL AND is_active
	`, string(mode))
}

func (r *Repository) multiplier(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var mult int64
	err := r.db.QueryRow(ctx, query, args...).Scan(&mult)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query odds config: %w", err)
	}
	return mult, true, nil
}

// PlayerDiscountBps returns 0 when the player has no active discount for mode.
func (r *Repository) PlayerDiscountBps(ctx context.Context, playerID int64, mode prediction.Mode) (int64, error) {
	var bps int64
	err := r.db.QueryRow(ctx, `
		SELECT discount_bps FROM player_discounts
		WHERE player_id = $1 AND mode = $2 AND is_active
	`, playerID, string(mode)).Scan(&bps)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query player discount: %w", err)
	}
	return bps, nil
}

// ListActive returns every active config row, platform defaults first.
func (r *Repository) ListActive(ctx context.Context) ([]*Config, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, mode, subadmin_id, multiplier, is_active
		FROM odds_configs
		WHERE is_active
		ORDER BY subadmin_id NULLS FIRST, mode
	`)
	if err != nil {
		return nil, fmt.Errorf("list odds configs: %w", err)
	}
	defer rows.Close()

	var out []*Config
	for rows.Next() {
		var c Config
		if err := rows.Scan(&c.ID, &c.Mode, &c.SubadminID, &c.Multiplier, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan odds config: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
