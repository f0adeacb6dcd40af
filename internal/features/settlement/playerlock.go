package settlement

import (
	"context"
	"sync"
)

// playerLocks serializes balance writes per player. Waiting honours ctx so a
// wager timeout also covers the time spent queued behind another wager.
type playerLocks struct {
	mu    sync.Mutex
	locks map[int64]*playerLock
}

type playerLock struct {
	ch   chan struct{}
	refs int // holder plus waiters
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[int64]*playerLock)}
}

func (p *playerLocks) lock(ctx context.Context, playerID int64) (func(), error) {
	p.mu.Lock()
	l, ok := p.locks[playerID]
	if !ok {
		l = &playerLock{ch: make(chan struct{}, 1)}
		p.locks[playerID] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			p.release(playerID, l)
		}, nil
	case <-ctx.Done():
		p.release(playerID, l)
		return nil, ctx.Err()
	}
}

func (p *playerLocks) release(playerID int64, l *playerLock) {
	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, playerID)
	}
	p.mu.Unlock()
}

// size is the number of players currently holding or waiting for a lock.
func (p *playerLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
