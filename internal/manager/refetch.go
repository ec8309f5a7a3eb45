package manager

import (
	"context"
	"sync"
)

// refetchGuard serializes child-list refetches: starting a new fetch
// cancels the in-flight one, and a late response from a superseded
// fetch is discarded so it can never overwrite a newer selection.
type refetchGuard struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// begin cancels any in-flight fetch and opens a new generation.
func (g *refetchGuard) begin(parent context.Context) (context.Context, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	g.gen++
	return ctx, g.gen
}

// still reports whether the given generation is still the latest.
func (g *refetchGuard) still(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gen == g.gen
}
