// Package prediction decides whether a single wager wins against a declared result.
// models.go describes game modes and the round categories they belong to.
package prediction

import "strings"

// Mode is the game mode of a wager.
type Mode string

const (
	ModeJodi     Mode = "jodi"      // exact two-digit pair
	ModeHarf     Mode = "harf"      // one digit, left/right/either position
	ModeCrossing Mode = "crossing"  // digit set, result formed by two different digits
	ModeOddEven  Mode = "odd_even"  // parity of the result
	ModeCoinFlip Mode = "coin_flip" // binary label
	ModeToss     Mode = "toss"      // binary label
)

// Category is the kind of round a declared result comes from.
type Category string

const (
	CategoryTwoDigit Category = "two_digit"
	CategoryBinary   Category = "binary"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeJodi, ModeHarf, ModeCrossing, ModeOddEven, ModeCoinFlip, ModeToss}

// ParseMode normalises s and reports whether it names a supported mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Category returns the round category a mode is played on.
func (m Mode) Category() Category {
	switch m {
	case ModeCoinFlip, ModeToss:
		return CategoryBinary
	default:
		return CategoryTwoDigit
	}
}

func (m Mode) String() string { return string(m) }
