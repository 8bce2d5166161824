package collab

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestGateFiresOnceAfterQuiet(t *testing.T) {
	var fired int32
	g := NewGate(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	g.Observe()
	time.Sleep(150 * time.Millisecond)

	if !g.Stable() {
		t.Error("Expected gate to be stable after the settle window")
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("Expected onStable to run exactly once, ran %d times", got)
	}
}

func TestGateRestartsOnBurst(t *testing.T) {
	var fired int32
	g := NewGate(60*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	// Observations closer together than the settle window keep
	// deferring readiness.
	for i := 0; i < 5; i++ {
		g.Observe()
		time.Sleep(15 * time.Millisecond)
	}
	if g.Stable() {
		t.Fatal("Expected gate to still be awaiting during the burst")
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("Expected no firing during the burst")
	}

	time.Sleep(200 * time.Millisecond)
	if !g.Stable() {
		t.Error("Expected gate to settle after the burst stopped")
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("Expected exactly one firing, got %d", got)
	}
}

func TestGateStableIsTerminal(t *testing.T) {
	var fired int32
	g := NewGate(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	g.Observe()
	time.Sleep(80 * time.Millisecond)

	// Later observations must neither reopen the gate nor refire.
	g.Observe()
	g.Observe()
	time.Sleep(80 * time.Millisecond)

	if !g.Stable() {
		t.Error("Expected gate to remain stable")
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("Expected exactly one firing, got %d", got)
	}
}

func TestGateStopSuppressesCallback(t *testing.T) {
	var fired int32
	g := NewGate(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	g.Observe()
	g.Stop()
	time.Sleep(120 * time.Millisecond)

	if !g.Stable() {
		t.Error("Expected Stop to close the gate")
	}
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("Expected no firing after Stop, got %d", got)
	}
}

func TestGateWithoutObservationsStaysOpen(t *testing.T) {
	g := NewGate(10*time.Millisecond, nil)

	time.Sleep(60 * time.Millisecond)

	if g.Stable() {
		t.Error("Expected gate with no observations to stay awaiting")
	}
}

func TestGateNilCallback(t *testing.T) {
	g := NewGate(10*time.Millisecond, nil)
	g.Observe()
	time.Sleep(60 * time.Millisecond)

	if !g.Stable() {
		t.Error("Expected gate to settle with a nil callback")
	}
}

func TestGateDefaultSettle(t *testing.T) {
	g := NewGate(0, nil)
	if g.settle != DefaultSettle {
		t.Errorf("Expected non-positive settle to fall back to %v, got %v", DefaultSettle, g.settle)
	}
}
