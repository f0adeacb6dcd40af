package prediction

import (
	"fmt"
	"strings"
	"unicode"

	"serotonyl.ru/settlement-engine/internal/common"
)

// separators are the characters seen between digits in stored predictions:
// "0,1,2", "0 1 2", "0-1-2", "0/1/2", "0|1|2", "0.1.2".
const separators = ", -/|.;"

// digitsOf strips separators and returns the remaining digits in order.
// Any other character makes the input malformed.
func digitsOf(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c)
		case strings.IndexByte(separators, c) >= 0:
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", common.ErrMalformedPrediction, c, s)
		}
	}
	return out, nil
}

// label lower-cases s and drops every space, dash and underscore.
func label(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// NormalizeResult validates a declared result and returns its canonical form:
// two ASCII digits for two-digit rounds, a lower-case label for binary ones.
func NormalizeResult(cat Category, declared string) (string, error) {
	switch cat {
	case CategoryTwoDigit:
		d, err := digitsOf(declared)
		if err != nil || len(d) != 2 {
			return "", fmt.Errorf("%w: %q is not a two-digit result", common.ErrInvalidResult, declared)
		}
		return string(d), nil
	case CategoryBinary:
		l := label(declared)
		if l == "" {
			return "", fmt.Errorf("%w: empty binary result", common.ErrInvalidResult)
		}
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", common.ErrInvalidResult, cat)
	}
}
