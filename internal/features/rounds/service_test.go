package rounds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

func TestCanTransition(t *testing.T) {
	for from := StateWaiting; from <= StateSettled; from++ {
		for to := StateWaiting; to <= StateSettled; to++ {
			want := to == from+1
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s,%s)=%v want=%v", from, to, got, want)
			}
		}
	}
}

func TestParseState(t *testing.T) {
	for s := StateWaiting; s <= StateSettled; s++ {
		got, ok := ParseState(s.String())
		if !ok || got != s {
			t.Fatalf("ParseState(%q)=%v,%v", s.String(), got, ok)
		}
	}
	if _, ok := ParseState("paused"); ok {
		t.Fatalf("paused should not parse")
	}
}

func TestLifecycle_FullPath(t *testing.T) {
	store := newMemStore(&Round{ID: 1, Category: prediction.CategoryTwoDigit, State: StateWaiting})
	svc := NewService(store, []string{"heads", "tails"})
	ctx := context.Background()

	if _, err := svc.Close(ctx, 1); !errors.Is(err, common.ErrInvalidStateTransition) {
		t.Fatalf("close from waiting err=%v", err)
	}
	if _, err := svc.Open(ctx, 1); err != nil {
		t.Fatalf("open err=%v", err)
	}
	if _, err := svc.DeclareResult(ctx, 1, "01"); !errors.Is(err, common.ErrInvalidStateTransition) {
		t.Fatalf("declare while open err=%v", err)
	}
	if _, err := svc.Close(ctx, 1); err != nil {
		t.Fatalf("close err=%v", err)
	}
	r, err := svc.DeclareResult(ctx, 1, "0-1")
	if err != nil {
		t.Fatalf("declare err=%v", err)
	}
	if r.State != StateResulted || r.Result() != "01" {
		t.Fatalf("state=%s result=%q", r.State, r.Result())
	}
	if _, err := svc.DeclareResult(ctx, 1, "02"); !errors.Is(err, common.ErrResultAlreadyDeclared) {
		t.Fatalf("redeclare err=%v", err)
	}
	if r, err = svc.MarkSettled(ctx, 1); err != nil || r.State != StateSettled {
		t.Fatalf("settle state=%v err=%v", r, err)
	}
	if _, err := svc.Open(ctx, 1); !errors.Is(err, common.ErrInvalidStateTransition) {
		t.Fatalf("backward move err=%v", err)
	}
}

func TestDeclareResult_Validation(t *testing.T) {
	store := newMemStore(
		&Round{ID: 1, Category: prediction.CategoryTwoDigit, State: StateClosed},
		&Round{ID: 2, Category: prediction.CategoryBinary, State: StateClosed},
		&Round{ID: 3, Category: prediction.CategoryBinary, State: StateClosed, Outcomes: []string{"India", "Australia"}},
	)
	svc := NewService(store, []string{"heads", "tails"})
	ctx := context.Background()

	if _, err := svc.DeclareResult(ctx, 1, "123"); !errors.Is(err, common.ErrInvalidResult) {
		t.Fatalf("three digits err=%v", err)
	}
	if _, err := svc.DeclareResult(ctx, 2, "edge"); !errors.Is(err, common.ErrInvalidResult) {
		t.Fatalf("unknown label err=%v", err)
	}
	if r, err := svc.DeclareResult(ctx, 2, "Heads"); err != nil || r.Result() != "heads" {
		t.Fatalf("heads result=%v err=%v", r, err)
	}
	if r, err := svc.DeclareResult(ctx, 3, "australia"); err != nil || r.Result() != "australia" {
		t.Fatalf("custom label result=%v err=%v", r, err)
	}
	if _, err := svc.DeclareResult(ctx, 99, "01"); !errors.Is(err, common.ErrRoundNotFound) {
		t.Fatalf("missing round err=%v", err)
	}
}

func TestDeclareResult_ConcurrentOnlyOneWins(t *testing.T) {
	store := newMemStore(&Round{ID: 1, Category: prediction.CategoryTwoDigit, State: StateClosed})
	svc := NewService(store, nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.DeclareResult(context.Background(), 1, []string{"11", "22"}[i%2])
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, common.ErrResultAlreadyDeclared) && !errors.Is(err, common.ErrInvalidStateTransition) {
				t.Errorf("unexpected err=%v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins=%d want=1", wins)
	}
}

func TestListByState_MinAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(
		&Round{ID: 1, State: StateResulted, UpdatedAt: now.Add(-10 * time.Minute)},
		&Round{ID: 2, State: StateResulted, UpdatedAt: now.Add(-30 * time.Second)},
		&Round{ID: 3, State: StateSettled, UpdatedAt: now.Add(-time.Hour)},
	)
	svc := NewService(store, nil)
	svc.now = func() time.Time { return now }

	got, err := svc.ListByState(context.Background(), StateResulted, 2*time.Minute, 10)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got=%v want round 1 only", got)
	}
}
