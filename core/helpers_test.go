package core

import "testing"

// newStage claims a power stage on simulated timers without initializing it.
func newStage(t *testing.T, cfg BoardConfig) (*PowerStage, *SimTimerPair) {
	t.Helper()
	sim := NewSimTimerPair()
	ps := NewPowerStage(sim, cfg)
	t.Cleanup(func() {
		ps.Release()
		ClearHalt()
		ClearEvents()
		SetDebugWriter(nil)
	})
	return ps, sim
}

// newTestStage returns an initialized power stage with the default board.
func newTestStage(t *testing.T) (*PowerStage, *SimTimerPair) {
	t.Helper()
	ps, sim := newStage(t, DefaultBoardConfig())
	ps.Init()
	return ps, sim
}

// expectHalt runs fn and returns the reason of the safety halt it caused.
func expectHalt(t *testing.T, fn func()) string {
	t.Helper()
	var reason string
	func() {
		defer func() {
			r := recover()
			v, ok := r.(*SafetyViolation)
			if !ok {
				t.Fatalf("Expected safety halt, got %v", r)
			}
			reason = v.Reason
		}()
		fn()
	}()
	if !IsHalted() {
		t.Error("Halt flag not set")
	}
	ClearHalt()
	return reason
}

// Limits of DefaultBoardConfig.
const (
	testTop      = 1023
	testHalfTop  = 512
	testMax      = 1012
	testDeadTime = 28
)
