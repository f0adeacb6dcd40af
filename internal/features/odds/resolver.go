package odds

import (
	"context"
	"fmt"
	"math/bits"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// Store is the read side of the odds tables. A missing row is reported with
// found=false, an error means the lookup itself failed.
type Store interface {
	SubadminMultiplier(ctx context.Context, mode prediction.Mode, subadminID int64) (mult int64, found bool, err error)
	PlatformMultiplier(ctx context.Context, mode prediction.Mode) (mult int64, found bool, err error)
	PlayerDiscountBps(ctx context.Context, playerID int64, mode prediction.Mode) (bps int64, err error)
}

// Resolver picks the multiplier: subadmin row, then platform row, then fallback.
// The player discount is applied last.
type Resolver struct {
	store     Store
	fallbacks map[prediction.Mode]int64
}

// NewResolver builds a resolver. overrides replaces entries of DefaultFallbacks by mode name.
func NewResolver(store Store, overrides map[string]int64) *Resolver {
	fb := make(map[prediction.Mode]int64, len(DefaultFallbacks))
	for m, v := range DefaultFallbacks {
		fb[m] = v
	}
	for k, v := range overrides {
		if m, ok := prediction.ParseMode(k); ok {
			fb[m] = v
		} else {
			log.WithField("mode", k).Warn("ignoring odds fallback for unknown mode")
		}
	}
	return &Resolver{store: store, fallbacks: fb}
}

// Fallback returns the hard-coded multiplier for mode.
func (r *Resolver) Fallback(mode prediction.Mode) (int64, bool) {
	v, ok := r.fallbacks[mode]
	return v, ok
}

// Resolve returns the effective multiplier for one wager. Store errors are
// returned as-is so the caller can defer the wager instead of paying a fallback rate.
func (r *Resolver) Resolve(ctx context.Context, mode prediction.Mode, p Player) (Resolution, error) {
	res := Resolution{Mode: mode}

	found := false
	if p.SubadminID != nil {
		mult, ok, err := r.store.SubadminMultiplier(ctx, mode, *p.SubadminID)
		if err != nil {
			return res, fmt.Errorf("subadmin odds lookup: %w", err)
		}
		if ok {
			res.Base, res.Source, found = mult, SourceSubadmin, true
		}
	}
	if !found {
		mult, ok, err := r.store.PlatformMultiplier(ctx, mode)
		if err != nil {
			return res, fmt.Errorf("platform odds lookup: %w", err)
		}
		if ok {
			res.Base, res.Source, found = mult, SourcePlatform, true
		}
	}
	if !found {
		mult, ok := r.fallbacks[mode]
		if !ok {
			return res, fmt.Errorf("%w: no fallback for mode %q", common.ErrOddsNotConfigured, mode)
		}
		log.WithFields(log.Fields{
			"mode":       mode,
			"player_id":  p.ID,
			"multiplier": common.FormatMultiplier(mult),
		}).WithError(common.ErrOddsNotConfigured).Warn("odds fallback used")
		res.Base, res.Source = mult, SourceFallback
	}

	bps, err := r.store.PlayerDiscountBps(ctx, p.ID, mode)
	if err != nil {
		return res, fmt.Errorf("player discount lookup: %w", err)
	}
	res.DiscountBps = ClampBps(bps)
	res.Effective = ApplyDiscount(res.Base, res.DiscountBps)
	return res, nil
}

// ClampBps keeps a discount inside [0, 10000] so it can only lower a multiplier.
func ClampBps(bps int64) int64 {
	switch {
	case bps < 0:
		return 0
	case bps > common.MultiplierScale:
		return common.MultiplierScale
	default:
		return bps
	}
}

// ApplyDiscount returns base reduced by bps basis points, floored.
func ApplyDiscount(base, bps int64) int64 {
	bps = ClampBps(bps)
	if bps == 0 {
		return base
	}
	const scale = common.MultiplierScale
	q, rem := base/scale, base%scale
	return q*(scale-bps) + rem*(scale-bps)/scale
}

// Payout computes floor(stake * multiplier / 10000) without floating point.
func Payout(stake, multiplier int64) (int64, error) {
	if stake < 0 || multiplier < 0 {
		return 0, fmt.Errorf("negative stake %d or multiplier %d", stake, multiplier)
	}
	hi, lo := bits.Mul64(uint64(stake), uint64(multiplier))
	if hi >= common.MultiplierScale {
		return 0, common.ErrPayoutOverflow
	}
	q, _ := bits.Div64(hi, lo, common.MultiplierScale)
	if q > 1<<63-1 {
		return 0, common.ErrPayoutOverflow
	}
	return int64(q), nil
}
