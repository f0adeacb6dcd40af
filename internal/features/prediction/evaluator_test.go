package prediction

import (
	"errors"
	"fmt"
	"testing"

	"serotonyl.ru/settlement-engine/internal/common"
)

func allResults() []string {
	out := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		out = append(out, fmt.Sprintf("%02d", i))
	}
	return out
}

func TestJodi_ExactMatchForAllPairs(t *testing.T) {
	results := allResults()
	for _, r := range results {
		for _, p := range results {
			got, err := Evaluate(ModeJodi, p, r)
			if err != nil {
				t.Fatalf("Evaluate(jodi,%q,%q) err=%v", p, r, err)
			}
			if got != (p == r) {
				t.Fatalf("Evaluate(jodi,%q,%q)=%v want=%v", p, r, got, p == r)
			}
		}
	}
}

func TestJodi_SeparatedEncoding(t *testing.T) {
	for _, p := range []string{"0,1", "0 1", "0-1", " 01 "} {
		if !Wins(ModeJodi, p, "01") {
			t.Fatalf("prediction %q should win on 01", p)
		}
	}
}

func TestJodi_Malformed(t *testing.T) {
	for _, p := range []string{"", "1", "123", "ab", "0x1"} {
		_, err := Evaluate(ModeJodi, p, "01")
		if !errors.Is(err, common.ErrMalformedPrediction) {
			t.Fatalf("prediction %q err=%v want ErrMalformedPrediction", p, err)
		}
		if Wins(ModeJodi, p, "01") {
			t.Fatalf("malformed %q must not win", p)
		}
	}
}

func TestHarf_Positional(t *testing.T) {
	for _, r := range allResults() {
		for d := byte('0'); d <= '9'; d++ {
			for _, prefix := range []string{"A", "L", "a", "l"} {
				p := prefix + string(d)
				if got := Wins(ModeHarf, p, r); got != (r[0] == d) {
					t.Fatalf("harf %q on %q=%v want=%v", p, r, got, r[0] == d)
				}
			}
			for _, prefix := range []string{"B", "R", "b", "r"} {
				p := prefix + string(d)
				if got := Wins(ModeHarf, p, r); got != (r[1] == d) {
					t.Fatalf("harf %q on %q=%v want=%v", p, r, got, r[1] == d)
				}
			}
			want := r[0] == d || r[1] == d
			if got := Wins(ModeHarf, string(d), r); got != want {
				t.Fatalf("harf %q on %q=%v want=%v", string(d), r, got, want)
			}
		}
	}
}

func TestHarf_Malformed(t *testing.T) {
	for _, p := range []string{"", "A", "A12", "C5", "L-"} {
		if _, err := Evaluate(ModeHarf, p, "47"); !errors.Is(err, common.ErrMalformedPrediction) {
			t.Fatalf("prediction %q err=%v want ErrMalformedPrediction", p, err)
		}
	}
	if !Wins(ModeHarf, "L-4", "47") {
		t.Fatalf("L-4 should win on 47")
	}
}

func TestCrossing(t *testing.T) {
	cases := []struct {
		prediction string
		result     string
		want       bool
	}{
		{"0,1,2", "01", true},
		{"012", "01", true},
		{"0 1 2", "21", true},
		{"3,4", "01", false},
		{"34", "43", true}, // reverse order counts
		{"1,2", "11", false},
		{"1,1,2", "12", true},
		{"0,1,2", "03", false},
	}
	for _, c := range cases {
		got, err := Evaluate(ModeCrossing, c.prediction, c.result)
		if err != nil {
			t.Fatalf("Evaluate(crossing,%q,%q) err=%v", c.prediction, c.result, err)
		}
		if got != c.want {
			t.Fatalf("Evaluate(crossing,%q,%q)=%v want=%v", c.prediction, c.result, got, c.want)
		}
	}
}

func TestCrossing_Malformed(t *testing.T) {
	for _, p := range []string{"", "5", "5,5", "1,a"} {
		if _, err := Evaluate(ModeCrossing, p, "01"); !errors.Is(err, common.ErrMalformedPrediction) {
			t.Fatalf("prediction %q err=%v want ErrMalformedPrediction", p, err)
		}
	}
}

func TestCrossing_AllResults(t *testing.T) {
	in := func(c byte) bool { return c == '0' || c == '1' || c == '2' }
	for _, r := range allResults() {
		want := r[0] != r[1] && in(r[0]) && in(r[1])
		if got := Wins(ModeCrossing, "0,1,2", r); got != want {
			t.Fatalf("crossing {0,1,2} on %q=%v want=%v", r, got, want)
		}
	}
}

func TestOddEven(t *testing.T) {
	if !Wins(ModeOddEven, "odd", "47") {
		t.Fatalf("odd should win on 47")
	}
	if Wins(ModeOddEven, "even", "47") {
		t.Fatalf("even should lose on 47")
	}
	if !Wins(ModeOddEven, "EVEN", "50") {
		t.Fatalf("even should win on 50")
	}
	if !Wins(ModeOddEven, "even", "00") {
		t.Fatalf("even should win on 00")
	}
	if _, err := Evaluate(ModeOddEven, "high", "50"); !errors.Is(err, common.ErrMalformedPrediction) {
		t.Fatalf("err=%v want ErrMalformedPrediction", err)
	}
}

func TestBinary(t *testing.T) {
	if !Wins(ModeCoinFlip, "Heads", "heads") {
		t.Fatalf("Heads should win on heads")
	}
	if Wins(ModeToss, "tails", "heads") {
		t.Fatalf("tails should lose on heads")
	}
	if _, err := Evaluate(ModeCoinFlip, "  ", "heads"); !errors.Is(err, common.ErrMalformedPrediction) {
		t.Fatalf("err=%v want ErrMalformedPrediction", err)
	}
}

func TestEvaluate_InvalidResult(t *testing.T) {
	for _, r := range []string{"", "1", "123", "ab"} {
		if _, err := Evaluate(ModeJodi, "01", r); !errors.Is(err, common.ErrInvalidResult) {
			t.Fatalf("result %q err=%v want ErrInvalidResult", r, err)
		}
	}
	if _, err := Evaluate(Mode("satta"), "01", "01"); !errors.Is(err, common.ErrMalformedPrediction) {
		t.Fatalf("unknown mode err=%v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode(" Jodi "); !ok || m != ModeJodi {
		t.Fatalf("m=%q ok=%v", m, ok)
	}
	if _, ok := ParseMode("bingo"); ok {
		t.Fatalf("bingo should not parse")
	}
	if ModeToss.Category() != CategoryBinary || ModeCrossing.Category() != CategoryTwoDigit {
		t.Fatalf("unexpected categories")
	}
}
