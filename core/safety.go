package core

import "sync/atomic"

// SafetyViolation is the panic value of the default halt handler.
type SafetyViolation struct {
	Reason string
}

func (v *SafetyViolation) Error() string {
	return "safety violation: " + v.Reason
}

var (
	halted uint32 // atomic bool

	// haltHandler is the platform reaction to a violated invariant. It runs
	// after the outputs are already off and is not expected to return.
	haltHandler = defaultHaltHandler
)

func defaultHaltHandler(reason string) {
	panic(&SafetyViolation{Reason: reason})
}

// SetHaltHandler sets the platform-specific halt handler (reset loop,
// watchdog trip). A nil handler restores the default, which panics.
func SetHaltHandler(handler func(reason string)) {
	if handler == nil {
		handler = defaultHaltHandler
	}
	haltHandler = handler
}

// SafetyAssert halts the system when ok is false. It must not be called
// from inside a critical section.
func SafetyAssert(ok bool, reason string) {
	if !ok {
		Halt(reason)
	}
}

// Halt forces all outputs off, reports the reason and hands control to the
// halt handler. Drive requests are ignored from here on.
func Halt(reason string) {
	atomic.StoreUint32(&halted, 1)

	if ps := activeStage(); ps != nil {
		ps.Emergency()
	}

	state := disableInterrupts()
	recordEvent(EvtHalt, 0, 0, 0)
	restoreInterrupts(state)

	Log("SAFETY HALT: " + reason)
	DumpEventRing()

	haltHandler(reason)
}

// IsHalted returns true once a safety halt happened
func IsHalted() bool {
	return atomic.LoadUint32(&halted) != 0
}

// ClearHalt re-arms the power stage after a halt. Only for host tools and
// tests; firmware leaves a halt through reset.
func ClearHalt() {
	atomic.StoreUint32(&halted, 0)
}
