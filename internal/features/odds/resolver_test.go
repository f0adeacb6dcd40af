package odds

import (
	"context"
	"errors"
	"math"
	"testing"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

type stubStore struct {
	platform  map[prediction.Mode]int64
	subadmin  map[int64]map[prediction.Mode]int64
	discounts map[int64]int64
	err       error
}

func (s *stubStore) SubadminMultiplier(_ context.Context, mode prediction.Mode, subadminID int64) (int64, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	v, ok := s.subadmin[subadminID][mode]
	return v, ok, nil
}

func (s *stubStore) PlatformMultiplier(_ context.Context, mode prediction.Mode) (int64, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	v, ok := s.platform[mode]
	return v, ok, nil
}

func (s *stubStore) PlayerDiscountBps(_ context.Context, playerID int64, _ prediction.Mode) (int64, error) {
	return s.discounts[playerID], nil
}

func ptr(v int64) *int64 { return &v }

func TestResolve_Precedence(t *testing.T) {
	store := &stubStore{
		platform: map[prediction.Mode]int64{prediction.ModeJodi: 950000},
		subadmin: map[int64]map[prediction.Mode]int64{7: {prediction.ModeJodi: 920000}},
	}
	r := NewResolver(store, nil)
	ctx := context.Background()

	res, err := r.Resolve(ctx, prediction.ModeJodi, Player{ID: 1, SubadminID: ptr(7)})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Source != SourceSubadmin || res.Effective != 920000 {
		t.Fatalf("subadmin: source=%s effective=%d", res.Source, res.Effective)
	}

	res, _ = r.Resolve(ctx, prediction.ModeJodi, Player{ID: 1, SubadminID: ptr(8)})
	if res.Source != SourcePlatform || res.Effective != 950000 {
		t.Fatalf("platform: source=%s effective=%d", res.Source, res.Effective)
	}

	res, _ = r.Resolve(ctx, prediction.ModeJodi, Player{ID: 1})
	if res.Source != SourcePlatform {
		t.Fatalf("no subadmin: source=%s want=platform", res.Source)
	}

	res, _ = r.Resolve(ctx, prediction.ModeHarf, Player{ID: 1, SubadminID: ptr(7)})
	if res.Source != SourceFallback || res.Effective != 90000 {
		t.Fatalf("fallback: source=%s effective=%d", res.Source, res.Effective)
	}
}

func TestResolve_DiscountNeverIncreases(t *testing.T) {
	store := &stubStore{
		platform:  map[prediction.Mode]int64{prediction.ModeJodi: 900000},
		discounts: map[int64]int64{1: 500, 2: -300, 3: 20000},
	}
	r := NewResolver(store, nil)
	cases := map[int64]int64{1: 855000, 2: 900000, 3: 0}
	for player, want := range cases {
		res, err := r.Resolve(context.Background(), prediction.ModeJodi, Player{ID: player})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if res.Effective != want {
			t.Fatalf("player %d effective=%d want=%d", player, res.Effective, want)
		}
		if res.Effective > res.Base {
			t.Fatalf("player %d discount raised multiplier", player)
		}
	}
}

func TestResolve_StoreErrorIsReturned(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(&stubStore{err: boom}, nil)
	if _, err := r.Resolve(context.Background(), prediction.ModeJodi, Player{ID: 1, SubadminID: ptr(7)}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want=%v", err, boom)
	}
}

func TestResolve_FallbackOverride(t *testing.T) {
	r := NewResolver(&stubStore{}, map[string]int64{"JODI": 800000, "bogus": 1})
	res, err := r.Resolve(context.Background(), prediction.ModeJodi, Player{ID: 1})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Effective != 800000 {
		t.Fatalf("effective=%d want=800000", res.Effective)
	}
	if v, _ := r.Fallback(prediction.ModeToss); v != 19500 {
		t.Fatalf("toss fallback=%d", v)
	}
}

func TestResolve_UnknownModeNotConfigured(t *testing.T) {
	r := NewResolver(&stubStore{}, nil)
	if _, err := r.Resolve(context.Background(), prediction.Mode("nope"), Player{ID: 1}); !errors.Is(err, common.ErrOddsNotConfigured) {
		t.Fatalf("err=%v", err)
	}
}

func TestApplyDiscount(t *testing.T) {
	cases := []struct{ base, bps, want int64 }{
		{900000, 0, 900000},
		{900000, 1000, 810000},
		{19500, 333, 18850}, // 19500*9667/10000 = 18850.65
		{19500, 10000, 0},
		{19500, -1, 19500},
		{math.MaxInt64, 1, math.MaxInt64/10000*9999 + math.MaxInt64%10000*9999/10000},
	}
	for _, c := range cases {
		if got := ApplyDiscount(c.base, c.bps); got != c.want {
			t.Fatalf("ApplyDiscount(%d,%d)=%d want=%d", c.base, c.bps, got, c.want)
		}
	}
}

func TestPayout(t *testing.T) {
	cases := []struct{ stake, mult, want int64 }{
		{1000, 900000, 90000},
		{500, 900000, 45000},
		{200, 19000, 380},
		{3, 19500, 5}, // 5.85 floors
		{0, 900000, 0},
	}
	for _, c := range cases {
		got, err := Payout(c.stake, c.mult)
		if err != nil {
			t.Fatalf("Payout(%d,%d) err=%v", c.stake, c.mult, err)
		}
		if got != c.want {
			t.Fatalf("Payout(%d,%d)=%d want=%d", c.stake, c.mult, got, c.want)
		}
	}

	if _, err := Payout(math.MaxInt64, 900000); !errors.Is(err, common.ErrPayoutOverflow) {
		t.Fatalf("overflow err=%v", err)
	}
	if got, err := Payout(math.MaxInt64, 10000); err != nil || got != math.MaxInt64 {
		t.Fatalf("1x payout=%d err=%v", got, err)
	}
	if _, err := Payout(-1, 10000); err == nil {
		t.Fatalf("negative stake must fail")
	}
}
