package handlers

import (
	"context"
	"sync"

	"github.com/ternarybob/hirescout/internal/interfaces"
)

// RunGate is shared by the extract and auth handlers. At most one extraction
// run is active, and interactive login cannot start while it is.
type RunGate struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunGate creates an empty gate
func NewRunGate() *RunGate {
	return &RunGate{active: make(map[string]context.CancelFunc)}
}

// Start registers a run. allowed is checked under the gate lock and may veto
// the run. Every successful Start must be paired with Finish.
func (g *RunGate) Start(id string, cancel context.CancelFunc, allowed func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.active) > 0 {
		return interfaces.ErrRunInProgress
	}
	if allowed != nil {
		if err := allowed(); err != nil {
			return err
		}
	}
	g.active[id] = cancel
	g.wg.Add(1)
	return nil
}

// Finish removes a run started with Start
func (g *RunGate) Finish(id string) {
	g.mu.Lock()
	cancel, ok := g.active[id]
	delete(g.active, id)
	g.mu.Unlock()

	if ok {
		cancel()
		g.wg.Done()
	}
}

// Exclusive runs fn only when no run is active. New runs wait until fn returns.
func (g *RunGate) Exclusive(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.active) > 0 {
		return interfaces.ErrRunInProgress
	}
	return fn()
}

// Cancel requests cancellation of an active run
func (g *RunGate) Cancel(id string) bool {
	g.mu.Lock()
	cancel, ok := g.active[id]
	g.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Active returns the ids of runs still in progress
func (g *RunGate) Active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels active runs and waits for them to finish
func (g *RunGate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	for _, cancel := range g.active {
		cancel()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
