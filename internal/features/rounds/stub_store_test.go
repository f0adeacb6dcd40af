package rounds

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/settlement-engine/internal/common"
)

type memStore struct {
	mu     sync.Mutex
	rounds map[int64]*Round
}

func newMemStore(rs ...*Round) *memStore {
	m := &memStore{rounds: map[int64]*Round{}}
	for _, r := range rs {
		m.rounds[r.ID] = r
	}
	return m
}

func (m *memStore) Get(_ context.Context, id int64) (*Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, common.ErrRoundNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Transition(_ context.Context, id int64, from, to State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.State != from {
		return false, nil
	}
	r.State = to
	return true, nil
}

func (m *memStore) SetResult(_ context.Context, id int64, result string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.State != StateClosed || r.DeclaredResult != nil {
		return false, nil
	}
	r.DeclaredResult = &result
	r.State = StateResulted
	return true, nil
}

func (m *memStore) ListByState(_ context.Context, state State, before time.Time, limit int) ([]*Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Round
	for _, r := range m.rounds {
		if r.State == state && !r.UpdatedAt.After(before) && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
