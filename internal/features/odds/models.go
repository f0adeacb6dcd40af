// Package odds resolves the payout multiplier of a wager.
// models.go holds the config rows and the resolution result.
package odds

import (
	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// Source tells which layer the base multiplier came from.
type Source string

const (
	SourceSubadmin Source = "subadmin"
	SourcePlatform Source = "platform"
	SourceFallback Source = "fallback"
)

// Config is one active odds_configs row. SubadminID is nil for the platform default.
type Config struct {
	ID         int64           `db:"id"`
	Mode       prediction.Mode `db:"mode"`
	SubadminID *int64          `db:"subadmin_id"`
	Multiplier int64           `db:"multiplier"` // scaled by common.MultiplierScale
	IsActive   bool            `db:"is_active"`
}

// Player is what the resolver needs to know about the wager owner.
type Player struct {
	ID         int64
	SubadminID *int64
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode        prediction.Mode
	Base        int64
	Effective   int64
	Source      Source
	DiscountBps int64
}

// DefaultFallbacks are used when neither a subadmin nor a platform row exists.
// Crossing pays per formed pair, the stake is recorded per combination.
var DefaultFallbacks = map[prediction.Mode]int64{
	prediction.ModeJodi:     90 * common.MultiplierScale,
	prediction.ModeHarf:     9 * common.MultiplierScale,
	prediction.ModeCrossing: 90 * common.MultiplierScale,
	prediction.ModeOddEven:  19000,
	prediction.ModeCoinFlip: 19500,
	prediction.ModeToss:     19500,
}
