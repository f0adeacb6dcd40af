package settlement

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
)

// memWorld is an in-memory stand-in for the rounds, wagers and ledger tables.
// Transactions stage their writes and apply them on commit. Balance writes are
// plain overwrites of the value read under "FOR UPDATE", so two unserialized
// transactions for one player lose an update just like a naive read-modify-write.
type memWorld struct {
	mu          sync.Mutex
	rounds      map[int64]*rounds.Round
	wagers      map[int64]*wagers.Wager
	balances    map[int64]int64
	txs         []*ledger.Transaction
	corrections map[int64]*ledger.Correction
	conflicts   map[int64]int // wager id -> injected balance conflicts left
	stale       []*wagers.Wager
	nextTxID    int64
}

func newWorld() *memWorld {
	return &memWorld{
		rounds:      map[int64]*rounds.Round{},
		wagers:      map[int64]*wagers.Wager{},
		balances:    map[int64]int64{},
		corrections: map[int64]*ledger.Correction{},
		conflicts:   map[int64]int{},
	}
}

func (m *memWorld) addRound(id int64, state rounds.State, result string) {
	r := &rounds.Round{ID: id, Category: prediction.CategoryTwoDigit, State: state}
	if result != "" {
		r.DeclaredResult = &result
	}
	m.rounds[id] = r
}

func (m *memWorld) addWager(id, player int64, roundID *int64, mode prediction.Mode, pred string, stake int64) *wagers.Wager {
	w := &wagers.Wager{
		ID: id, PlayerID: player, RoundID: roundID, Mode: mode,
		Prediction: pred, Stake: stake, Outcome: wagers.OutcomePending,
	}
	m.wagers[id] = w
	if _, ok := m.balances[player]; !ok {
		m.balances[player] = 0
	}
	return w
}

func (m *memWorld) wager(id int64) wagers.Wager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.wagers[id]
}

func (m *memWorld) balance(player int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[player]
}

func (m *memWorld) transactions() []*ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ledger.Transaction(nil), m.txs...)
}

// RoundStore

type memRounds struct{ w *memWorld }

func (r memRounds) Get(_ context.Context, id int64) (*rounds.Round, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	round, ok := r.w.rounds[id]
	if !ok {
		return nil, common.ErrRoundNotFound
	}
	cp := *round
	return &cp, nil
}

func (r memRounds) MarkSettled(_ context.Context, id int64) (*rounds.Round, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	round := r.w.rounds[id]
	if round.State != rounds.StateResulted {
		return nil, fmt.Errorf("%w: round %d is %s", common.ErrInvalidStateTransition, id, round.State)
	}
	round.State = rounds.StateSettled
	cp := *round
	return &cp, nil
}

// WagerStore

type memWagers struct{ w *memWorld }

func (s memWagers) Get(_ context.Context, id int64) (*wagers.Wager, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	w, ok := s.w.wagers[id]
	if !ok {
		return nil, common.ErrWagerNotFound
	}
	cp := *w
	return &cp, nil
}

func (s memWagers) byRound(roundID int64, outcome wagers.Outcome) []*wagers.Wager {
	var out []*wagers.Wager
	for _, w := range s.w.wagers {
		if w.RoundID != nil && *w.RoundID == roundID && w.Outcome == outcome {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memWagers) ListPendingByRound(_ context.Context, roundID int64) ([]*wagers.Wager, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.stale != nil {
		out := s.w.stale
		s.w.stale = nil
		return out, nil
	}
	return s.byRound(roundID, wagers.OutcomePending), nil
}

func (s memWagers) CountPendingByRound(_ context.Context, roundID int64) (int, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return len(s.byRound(roundID, wagers.OutcomePending)), nil
}

func (s memWagers) ListLossesByRound(_ context.Context, roundID int64) ([]*wagers.Wager, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.byRound(roundID, wagers.OutcomeLoss), nil
}

// Ledger

type memLedger struct{ w *memWorld }

type stagedMark struct {
	id           int64
	outcome      wagers.Outcome
	payout       int64
	balanceAfter int64
	runID        string
}

type memTx struct {
	w           *memWorld
	balances    map[int64]int64
	created     map[int64]bool
	marks       []stagedMark
	txs         []*ledger.Transaction
	corrections []*ledger.Correction
}

func (l memLedger) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{w: l.w, balances: map[int64]int64{}, created: map[int64]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (t *memTx) commit() error {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	for _, m := range t.marks {
		if t.w.wagers[m.id].Outcome.Terminal() {
			return fmt.Errorf("wager %d is no longer pending", m.id)
		}
	}
	for _, c := range t.corrections {
		if _, ok := t.w.corrections[c.WagerID]; ok {
			return fmt.Errorf("%w: wager %d", common.ErrAlreadyCorrected, c.WagerID)
		}
	}
	for p, b := range t.balances {
		t.w.balances[p] = b
	}
	for _, m := range t.marks {
		w := t.w.wagers[m.id]
		after := m.balanceAfter
		run := m.runID
		w.Outcome, w.Payout, w.BalanceAfter, w.SettlementRun = m.outcome, m.payout, &after, &run
	}
	for _, tr := range t.txs {
		t.w.nextTxID++
		tr.ID = t.w.nextTxID
		t.w.txs = append(t.w.txs, tr)
	}
	for _, c := range t.corrections {
		t.w.corrections[c.WagerID] = c
	}
	return nil
}

func (t *memTx) LockWager(_ context.Context, id int64) (*wagers.Wager, error) {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	if n := t.w.conflicts[id]; n > 0 {
		t.w.conflicts[id] = n - 1
		return nil, fmt.Errorf("%w: injected", common.ErrBalanceConflict)
	}
	w, ok := t.w.wagers[id]
	if !ok {
		return nil, common.ErrWagerNotFound
	}
	cp := *w
	return &cp, nil
}

// EnsureBalance stages a zero row that becomes visible on commit.
func (t *memTx) EnsureBalance(_ context.Context, playerID int64) error {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	if _, ok := t.w.balances[playerID]; !ok {
		t.created[playerID] = true
	}
	return nil
}

func (t *memTx) BalanceForUpdate(_ context.Context, playerID int64) (int64, error) {
	t.w.mu.Lock()
	b, ok := t.w.balances[playerID]
	t.w.mu.Unlock()
	if !ok && t.created[playerID] {
		b, ok = 0, true
	}
	if !ok {
		return 0, common.ErrBalanceNotFound
	}
	t.balances[playerID] = b
	runtime.Gosched()
	return b, nil
}

func (t *memTx) ApplyDelta(_ context.Context, playerID, delta int64) (int64, error) {
	b, ok := t.balances[playerID]
	if !ok {
		return 0, fmt.Errorf("balance of %d not locked", playerID)
	}
	t.balances[playerID] = b + delta
	return b + delta, nil
}

func (t *memTx) MarkTerminal(_ context.Context, id int64, outcome wagers.Outcome, payout, balanceAfter int64, runID string) error {
	t.marks = append(t.marks, stagedMark{id, outcome, payout, balanceAfter, runID})
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *ledger.Transaction) (int64, error) {
	cp := *tr
	t.txs = append(t.txs, &cp)
	return 0, nil
}

func (t *memTx) InsertCorrection(_ context.Context, c *ledger.Correction) (int64, error) {
	t.w.mu.Lock()
	_, taken := t.w.corrections[c.WagerID]
	t.w.mu.Unlock()
	if taken {
		return 0, fmt.Errorf("%w: wager %d", common.ErrAlreadyCorrected, c.WagerID)
	}
	cp := *c
	t.corrections = append(t.corrections, &cp)
	return 0, nil
}

// odds

type memOdds struct {
	err   error
	block bool
}

func (o *memOdds) SubadminMultiplier(context.Context, prediction.Mode, int64) (int64, bool, error) {
	return 0, false, o.err
}

func (o *memOdds) PlatformMultiplier(ctx context.Context, _ prediction.Mode) (int64, bool, error) {
	if o.block {
		<-ctx.Done()
		return 0, false, ctx.Err()
	}
	return 0, false, o.err
}

func (o *memOdds) PlayerDiscountBps(context.Context, int64, prediction.Mode) (int64, error) {
	return 0, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	runs []Summary
}

func (n *recordingNotifier) RunFinished(_ context.Context, s Summary) {
	n.mu.Lock()
	n.runs = append(n.runs, s)
	n.mu.Unlock()
}
