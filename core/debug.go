package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a power stage event for post-mortem analysis
type Event struct {
	Kind   uint8  // Event kind code
	Index  uint8  // Phase or commutation step
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event kind codes
const (
	EvtInit      = 1 // timers started; Value1 = Max, Value2 = DeadTime
	EvtPhase     = 2 // SetPhase; Value1 = PhaseState, Value2 = normalized value
	EvtPhaseRaw  = 3 // SetPhaseValue; Value1 = inverted, Value2 = normalized value
	EvtStep      = 4 // SetStepFromISR; Value2 = normalized value
	EvtEmergency = 5 // Emergency shutdown
	EvtHalt      = 6 // Safety halt
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled gates DebugPrintln. Log is never gated.
	debugEnabled bool = false

	// Event ring. Written only from inside critical sections.
	eventRing     [EventRingSize]Event
	eventRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(s string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message if debug output is enabled
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// Log writes a message unconditionally. Used for commissioning and halt
// reports that must always reach the console.
func Log(msg string) {
	debugPrintln(msg)
}

// recordEvent stores an event in the ring. Caller holds the critical section.
func recordEvent(kind, index uint8, value1, value2 uint32) {
	idx := eventRingHead
	eventRing[idx] = Event{
		Kind:   kind,
		Index:  index,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	events := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// ClearEvents empties the event ring
func ClearEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
}

func eventName(kind uint8) string {
	switch kind {
	case EvtInit:
		return "INIT"
	case EvtPhase:
		return "PHASE"
	case EvtPhaseRaw:
		return "PHASE_RAW"
	case EvtStep:
		return "STEP"
	case EvtEmergency:
		return "EMERGENCY"
	case EvtHalt:
		return "HALT"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing writes the event ring to the debug writer (call on halt)
func DumpEventRing() {
	Log("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		Log("[EVENTS] " + eventName(evt.Kind) +
			" idx=" + utoa(uint32(evt.Index)) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	Log("[EVENTS] === End Dump ===")
}
