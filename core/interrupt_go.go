//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// Host builds have no interrupt mask. A mutex serializes critical sections
// instead, so goroutines standing in for interrupt context never observe a
// half-written register group.
var criticalSection sync.Mutex

// disableInterrupts enters the critical section. Sections must not nest.
func disableInterrupts() State {
	criticalSection.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	criticalSection.Unlock()
}
