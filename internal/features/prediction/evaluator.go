package prediction

import (
	"fmt"
	"strings"

	"serotonyl.ru/settlement-engine/internal/common"
)

// Evaluate decides whether prediction wins against declared for the given mode.
// It touches no external state.
//
// A malformed prediction returns an error wrapping common.ErrMalformedPrediction,
// a malformed result one wrapping common.ErrInvalidResult. Callers settle both
// as a loss; Wins does that directly.
func Evaluate(mode Mode, prediction, declared string) (bool, error) {
	result, err := NormalizeResult(mode.Category(), declared)
	if err != nil {
		return false, err
	}

	switch mode {
	case ModeJodi:
		return evalJodi(prediction, result)
	case ModeHarf:
		return evalHarf(prediction, result)
	case ModeCrossing:
		return evalCrossing(prediction, result)
	case ModeOddEven:
		return evalOddEven(prediction, result)
	case ModeCoinFlip, ModeToss:
		return evalBinary(prediction, result)
	default:
		return false, fmt.Errorf("%w: unknown mode %q", common.ErrMalformedPrediction, mode)
	}
}

// Wins is the fail-closed form of Evaluate: any error is a loss.
func Wins(mode Mode, prediction, declared string) bool {
	ok, err := Evaluate(mode, prediction, declared)
	return err == nil && ok
}

func evalJodi(prediction, result string) (bool, error) {
	d, err := digitsOf(prediction)
	if err != nil {
		return false, err
	}
	if len(d) != 2 {
		return false, fmt.Errorf("%w: jodi needs two digits, got %q", common.ErrMalformedPrediction, prediction)
	}
	return string(d) == result, nil
}

// harf position selectors
const (
	posAny = iota
	posLeft
	posRight
)

func evalHarf(prediction, result string) (bool, error) {
	p := strings.ToUpper(strings.TrimSpace(prediction))
	pos := posAny
	if p != "" {
		switch p[0] {
		case 'A', 'L':
			pos, p = posLeft, p[1:]
		case 'B', 'R':
			pos, p = posRight, p[1:]
		}
	}
	d, err := digitsOf(p)
	if err != nil {
		return false, err
	}
	if len(d) != 1 {
		return false, fmt.Errorf("%w: harf needs one digit, got %q", common.ErrMalformedPrediction, prediction)
	}

	switch pos {
	case posLeft:
		return result[0] == d[0], nil
	case posRight:
		return result[1] == d[0], nil
	default:
		return result[0] == d[0] || result[1] == d[0], nil
	}
}

// evalCrossing wins when the result is one of the ordered pairs (d_i, d_j), i != j,
// drawn from the predicted digit set. The pair set holds both orders, so "10"
// wins for {0,1} as well as "01". A double such as "11" is never formable.
func evalCrossing(prediction, result string) (bool, error) {
	d, err := digitsOf(prediction)
	if err != nil {
		return false, err
	}
	var set [10]bool
	distinct := 0
	for _, c := range d {
		if !set[c-'0'] {
			set[c-'0'] = true
			distinct++
		}
	}
	if distinct < 2 {
		return false, fmt.Errorf("%w: crossing needs at least two distinct digits, got %q", common.ErrMalformedPrediction, prediction)
	}
	if result[0] == result[1] {
		return false, nil
	}
	return set[result[0]-'0'] && set[result[1]-'0'], nil
}

func evalOddEven(prediction, result string) (bool, error) {
	odd := (result[1]-'0')%2 == 1
	switch label(prediction) {
	case "odd":
		return odd, nil
	case "even":
		return !odd, nil
	default:
		return false, fmt.Errorf("%w: odd_even needs odd or even, got %q", common.ErrMalformedPrediction, prediction)
	}
}

func evalBinary(prediction, result string) (bool, error) {
	p := label(prediction)
	if p == "" {
		return false, fmt.Errorf("%w: empty binary prediction", common.ErrMalformedPrediction)
	}
	return p == result, nil
}
