package input

import (
	"context"

	"github.com/sasha-s/go-deadlock"
)

// Gate serializes input sequences between modules.
// Exactly one owner holds it at a time.
type Gate struct {
	token chan struct{}

	mu     deadlock.Mutex
	holder string
}

// NewGate creates a free gate
func NewGate() *Gate {
	g := &Gate{token: make(chan struct{}, 1)}
	g.token <- struct{}{}
	return g
}

// Acquire blocks until the gate is free or ctx is done.
// The returned release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, owner string) (func(), error) {
	select {
	case <-g.token:
		return g.hold(owner), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes the gate only if it is free right now
func (g *Gate) TryAcquire(owner string) (func(), bool) {
	select {
	case <-g.token:
		return g.hold(owner), true
	default:
		return nil, false
	}
}

// Holder returns the current owner, or "" when free
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}

func (g *Gate) hold(owner string) func() {
	g.mu.Lock()
	g.holder = owner
	g.mu.Unlock()

	released := false
	return func() {
		g.mu.Lock()
		if released {
			g.mu.Unlock()
			return
		}
		released = true
		g.holder = ""
		g.mu.Unlock()
		g.token <- struct{}{}
	}
}
