package collab

import (
	"sync"
	"time"
)

// DefaultSettle is how long the initial snapshot stream must stay quiet
// before the session declares the first load complete. Channel
// implementations may fragment the initial bulk read into several rapid
// callbacks; declaring readiness on the first one flashes partial data.
const DefaultSettle = 200 * time.Millisecond

type gateState int

const (
	gateAwaiting gateState = iota
	gateStable
)

// Gate defers "initial load complete" until the opening burst of
// snapshot callbacks has settled. Every observation while awaiting
// restarts the settle timer; once the timer fires the gate is stable for
// good and the callback has run exactly once.
type Gate struct {
	mu       sync.Mutex
	state    gateState
	timer    *time.Timer
	gen      uint64
	settle   time.Duration
	onStable func()
}

// NewGate returns an awaiting gate. A non-positive settle falls back to
// DefaultSettle. onStable may be nil.
func NewGate(settle time.Duration, onStable func()) *Gate {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Gate{settle: settle, onStable: onStable}
}

// Observe notes one snapshot callback and restarts the settle timer.
// No-op once stable.
func (g *Gate) Observe() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == gateStable {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	// The generation guards against a superseded timer that already
	// fired and is waiting on the mutex.
	g.gen++
	gen := g.gen
	g.timer = time.AfterFunc(g.settle, func() { g.fire(gen) })
}

func (g *Gate) fire(gen uint64) {
	g.mu.Lock()
	if g.state == gateStable || gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.state = gateStable
	g.timer = nil
	callback := g.onStable
	g.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Stop cancels any pending timer and closes the gate without firing.
// Called on teardown so a late timer cannot mutate state afterwards.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
	g.state = gateStable
}

// Stable reports whether the gate has closed.
func (g *Gate) Stable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gateStable
}
