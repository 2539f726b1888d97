package core

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInitConfiguresTimers(t *testing.T) {
	ps, sim := newTestStage(t)

	if sim.Resets != 1 {
		t.Errorf("Expected 1 timer reset, got %d", sim.Resets)
	}

	for name, tim := range map[string]*SimTimer{"low": &sim.Low, "high": &sim.High} {
		if tim.ARR.Get() != testTop {
			t.Errorf("%s ARR: expected %d, got %d", name, testTop, tim.ARR.Get())
		}
		if tim.CR1.Get() != TIM_CR1_ARPE|TIM_CR1_CMS_0|TIM_CR1_CEN {
			t.Errorf("%s CR1: unexpected 0x%x", name, tim.CR1.Get())
		}
		if tim.CCMR1.Get() != ccmrPWM() || tim.CCMR2.Get() != ccmrPWM() {
			t.Errorf("%s CCMR: unexpected 0x%x 0x%x", name, tim.CCMR1.Get(), tim.CCMR2.Get())
		}
		if tim.CCER.Get() != TIM_CCER_ALL_ENABLED {
			t.Errorf("%s CCER: expected all channels enabled without inversion, got 0x%x", name, tim.CCER.Get())
		}
	}

	if sim.High.CCR[3].Get() != 404 {
		t.Errorf("ADC trigger: expected 404, got %d", sim.High.CCR[3].Get())
	}
	if sim.Low.EGR.Get() != TIM_EGR_UG || sim.High.EGR.Get() != TIM_EGR_UG|TIM_EGR_COMG {
		t.Errorf("EGR: unexpected low 0x%x high 0x%x", sim.Low.EGR.Get(), sim.High.EGR.Get())
	}
	if !ps.Initialized() {
		t.Error("Stage not marked initialized")
	}
}

func TestInitStartsTimersSynchronously(t *testing.T) {
	ps, sim := newTestStage(t)

	low, high := ps.Running()
	if !low || !high {
		t.Fatalf("Expected both timers running, got low=%v high=%v", low, high)
	}

	// The trigger chain must be torn down after the start
	if sim.Low.CR2.Get()&TIM_CR2_MMS != 0 {
		t.Errorf("Master mode still set: 0x%x", sim.Low.CR2.Get())
	}
	if sim.High.SMCR.Get() != 0 {
		t.Errorf("Slave mode still set: 0x%x", sim.High.SMCR.Get())
	}
	// The slave is only ever started by the trigger, never by software
	if sim.High.CR1.Writes() != 1 {
		t.Errorf("Expected a single software write to slave CR1, got %d", sim.High.CR1.Writes())
	}
}

func TestInitLeavesPhasesFloating(t *testing.T) {
	ps, _ := newTestStage(t)

	for phase := 0; phase < NumPhases; phase++ {
		if mode := ps.PhaseMode(phase); mode != ModeFloating {
			t.Errorf("Phase %d: expected floating, got %v", phase, mode)
		}
		if out := ps.PhaseOutput(phase); out != (PhaseOutput{}) {
			t.Errorf("Phase %d: expected zero output, got %+v", phase, out)
		}
	}
}

func TestInitLogsLimits(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })

	newTestStage(t)

	expected := "Motor: PWM max: 1012; Dead time: 28 ticks"
	if len(lines) != 1 || lines[0] != expected {
		t.Errorf("Expected log %q, got %q", expected, lines)
	}
}

// keepRunning makes a counter enable bit survive every software write.
func keepRunning(r *SimRegister) {
	r.onWrite = func(_, _ uint32) {
		r.value |= TIM_CR1_CEN
	}
}

func TestInitHaltsWhenTimerAlreadyRunning(t *testing.T) {
	testCases := []struct {
		name   string
		stuck  func(sim *SimTimerPair) *SimRegister
		reason string
	}{
		{"low side", func(sim *SimTimerPair) *SimRegister { return &sim.Low.CR1 }, "low-side timer running before start"},
		{"high side", func(sim *SimTimerPair) *SimRegister { return &sim.High.CR1 }, "high-side timer running before start"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps, sim := newStage(t, DefaultBoardConfig())
			keepRunning(tc.stuck(sim))

			reason := expectHalt(t, ps.Init)
			if reason != tc.reason {
				t.Errorf("Unexpected reason %q", reason)
			}
			if ps.Initialized() {
				t.Error("Stage initialized despite running timer")
			}
		})
	}
}

func TestInitHaltsWhenSlaveDoesNotStart(t *testing.T) {
	ps, sim := newStage(t, DefaultBoardConfig())
	sim.Low.CR1.onWrite = nil // trigger chain broken

	reason := expectHalt(t, ps.Init)
	if reason != "high-side timer did not start" {
		t.Errorf("Unexpected reason %q", reason)
	}
}

func TestInitHaltsOnBadTiming(t *testing.T) {
	cfg := DefaultBoardConfig()
	cfg.DeadTimeNanosec = 1000
	ps, sim := newStage(t, cfg)

	reason := expectHalt(t, ps.Init)
	if !strings.HasPrefix(reason, "pwm limits: dead time") {
		t.Errorf("Unexpected reason %q", reason)
	}
	if sim.Resets != 0 {
		t.Error("Timers touched despite bad timing")
	}
}

func TestInitTwiceHalts(t *testing.T) {
	ps, _ := newTestStage(t)

	reason := expectHalt(t, ps.Init)
	if reason != "power stage already initialized" {
		t.Errorf("Unexpected reason %q", reason)
	}
}

func TestSecondPowerStageHalts(t *testing.T) {
	newTestStage(t)

	reason := expectHalt(t, func() { NewPowerStage(NewSimTimerPair(), DefaultBoardConfig()) })
	if reason != "power stage already claimed" {
		t.Errorf("Unexpected reason %q", reason)
	}
}

func TestReleaseAllowsNewStage(t *testing.T) {
	sim := NewSimTimerPair()
	ps := NewPowerStage(sim, DefaultBoardConfig())
	ps.Release()

	ps2, _ := newTestStage(t)
	if ps2 == nil || activeStage() != ps2 {
		t.Error("New stage not active after release")
	}
}

func TestInvalidChannelMapHalts(t *testing.T) {
	sim := NewSimTimerPair()
	sim.Channels.High = [NumPhases]uint8{0, 1, 3} // collides with the ADC trigger

	reason := expectHalt(t, func() { NewPowerStage(sim, DefaultBoardConfig()) })
	if reason != "invalid channel map" {
		t.Errorf("Unexpected reason %q", reason)
	}
	if atomic.LoadUint32(&stageClaimed) != 0 {
		t.Error("Claim kept after invalid channel map")
	}
}

func TestSetPhaseStates(t *testing.T) {
	ps, _ := newTestStage(t)

	testCases := []struct {
		state    PhaseState
		expected PhaseOutput
		mode     PhaseMode
	}{
		{PhaseDriveHigh, PhaseOutput{High: testMax - testDeadTime, Low: testMax, LowInverted: true}, ModeNormal},
		{PhaseDriveHalf, PhaseOutput{High: testHalfTop, Low: testHalfTop + testDeadTime, LowInverted: true}, ModeNormal},
		{PhaseDriveLow, PhaseOutput{High: 0, Low: testTop}, ModeLow},
		{PhaseFloating, PhaseOutput{}, ModeFloating},
	}

	for phase := 0; phase < NumPhases; phase++ {
		for _, tc := range testCases {
			ps.SetPhase(phase, tc.state)
			if out := ps.PhaseOutput(phase); out != tc.expected {
				t.Errorf("Phase %d %v: expected %+v, got %+v", phase, tc.state, tc.expected, out)
			}
			if mode := ps.PhaseMode(phase); mode != tc.mode {
				t.Errorf("Phase %d %v: expected mode %v, got %v", phase, tc.state, tc.mode, mode)
			}
		}
	}
}

func TestSetPhaseDoesNotTouchOtherPhases(t *testing.T) {
	ps, _ := newTestStage(t)

	ps.SetPhase(0, PhaseDriveHigh)
	ps.SetPhase(2, PhaseDriveLow)
	before := ps.PhaseOutput(0)

	ps.SetPhase(1, PhaseDriveHalf)
	ps.SetPhase(1, PhaseFloating)

	if after := ps.PhaseOutput(0); after != before {
		t.Errorf("Phase 0 changed from %+v to %+v", before, after)
	}
	if mode := ps.PhaseMode(2); mode != ModeLow {
		t.Errorf("Phase 2: expected low, got %v", mode)
	}
}

func TestDeadTimeInjection(t *testing.T) {
	ps, _ := newTestStage(t)

	for v := PWMValue(testHalfTop); v <= testMax; v++ {
		for _, inverted := range []bool{false, true} {
			ps.SetPhaseValue(1, v, inverted)
			out := ps.PhaseOutput(1)

			if out.High > testTop || out.Low > testTop {
				t.Fatalf("v=%d inverted=%v: register above TOP: %+v", v, inverted, out)
			}
			if out.HighInverted != inverted || out.LowInverted == inverted {
				t.Fatalf("v=%d inverted=%v: wrong polarity %+v", v, inverted, out)
			}

			// Which register carries the bias and in which direction
			var biased, other uint32
			switch {
			case !inverted && v > testHalfTop:
				biased, other = out.High, out.Low
				if biased != uint32(v)-testDeadTime {
					t.Fatalf("v=%d: high side not delayed: %+v", v, out)
				}
			case !inverted:
				biased, other = out.Low, out.High
				if biased != uint32(v)+testDeadTime {
					t.Fatalf("v=%d: low side not delayed: %+v", v, out)
				}
			case v > testHalfTop:
				biased, other = out.Low, out.High
				if biased != uint32(v)-testDeadTime {
					t.Fatalf("v=%d inverted: low side not delayed: %+v", v, out)
				}
			default:
				biased, other = out.High, out.Low
				if biased != uint32(v)+testDeadTime {
					t.Fatalf("v=%d inverted: high side not delayed: %+v", v, out)
				}
			}
			if other != uint32(v) {
				t.Fatalf("v=%d inverted=%v: unbiased register %d", v, inverted, other)
			}

			diff := int(out.High) - int(out.Low)
			if diff != testDeadTime && diff != -testDeadTime {
				t.Fatalf("v=%d inverted=%v: registers differ by %d", v, inverted, diff)
			}
		}
	}
}

func TestSetPhaseContractViolations(t *testing.T) {
	ps, _ := newTestStage(t)

	testCases := []struct {
		name   string
		call   func()
		reason string
	}{
		{"negative phase", func() { ps.SetPhase(-1, PhaseFloating) }, "invalid phase index -1"},
		{"phase too large", func() { ps.SetPhase(3, PhaseDriveHigh) }, "invalid phase index 3"},
		{"unknown state", func() { ps.SetPhase(0, PhaseState(9)) }, "invalid phase state 9"},
		{"value below half", func() { ps.SetPhaseValue(0, testHalfTop-1, false) }, "pwm value out of range 511"},
		{"value above max", func() { ps.SetPhaseValue(0, testMax+1, true) }, "pwm value out of range 1013"},
		{"readback bad phase", func() { ps.PhaseOutput(5) }, "invalid phase index 5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reason := expectHalt(t, tc.call)
			if reason != tc.reason {
				t.Errorf("Expected %q, got %q", tc.reason, reason)
			}
		})
	}
}

func TestSetPhaseBeforeInitHalts(t *testing.T) {
	ps, _ := newStage(t, DefaultBoardConfig())

	reason := expectHalt(t, func() { ps.SetPhase(0, PhaseFloating) })
	if reason != "power stage used before init" {
		t.Errorf("Unexpected reason %q", reason)
	}
}

func TestHaltedStageRefusesToDrive(t *testing.T) {
	ps, _ := newTestStage(t)

	ps.SetPhase(0, PhaseDriveHigh)
	atomic.StoreUint32(&halted, 1)

	ps.SetPhase(1, PhaseDriveHigh)
	ps.SetPhase(2, PhaseDriveLow)
	ps.SetPhaseValue(1, testMax, true)
	ps.SetStepFromISR(0, testMax)
	ps.SetPhase(0, PhaseFloating)

	for phase := 0; phase < NumPhases; phase++ {
		if mode := ps.PhaseMode(phase); mode != ModeFloating {
			t.Errorf("Phase %d: expected floating after halt, got %v", phase, mode)
		}
	}
}

func TestHaltShutsDownOutputs(t *testing.T) {
	ps, _ := newTestStage(t)
	ps.SetStepFromISR(2, testMax)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })

	expectHalt(t, func() { Halt("overcurrent") })

	for phase := 0; phase < NumPhases; phase++ {
		if out := ps.PhaseOutput(phase); out != (PhaseOutput{}) {
			t.Errorf("Phase %d: expected outputs off, got %+v", phase, out)
		}
	}
	if len(lines) == 0 || lines[0] != "SAFETY HALT: overcurrent" {
		t.Errorf("Halt not reported: %q", lines)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "[EVENTS] EMERGENCY") {
		t.Errorf("Event ring not dumped: %q", lines)
	}
}

func TestSetFreewheeling(t *testing.T) {
	ps, _ := newTestStage(t)

	ps.SetStepFromISR(4, testMax)
	ps.SetFreewheeling()

	for phase := 0; phase < NumPhases; phase++ {
		if out := ps.PhaseOutput(phase); out != (PhaseOutput{}) {
			t.Errorf("Phase %d: expected floating, got %+v", phase, out)
		}
	}
}

func TestEmergency(t *testing.T) {
	ps, sim := newTestStage(t)

	ps.SetPhase(0, PhaseDriveHigh)
	ps.SetPhaseValue(1, 700, true)
	ps.SetPhase(2, PhaseDriveLow)
	sim.ClearWriteCounters()

	ps.Emergency()

	for phase := 0; phase < NumPhases; phase++ {
		if out := ps.PhaseOutput(phase); out != (PhaseOutput{}) {
			t.Errorf("Phase %d: expected both gates off, got %+v", phase, out)
		}
	}

	// Only polarity and compare registers are touched
	for _, tim := range []*SimTimer{&sim.Low, &sim.High} {
		for _, r := range []*SimRegister{&tim.CR1, &tim.CR2, &tim.SMCR, &tim.EGR, &tim.CCMR1, &tim.CCMR2, &tim.ARR} {
			if r.Writes() != 0 {
				t.Errorf("Emergency wrote a configuration register")
			}
		}
	}
	// The ADC trigger keeps running
	if sim.High.CCR[3].Get() != 404 {
		t.Errorf("ADC trigger changed to %d", sim.High.CCR[3].Get())
	}
	if low, high := ps.Running(); !low || !high {
		t.Error("Timers stopped by emergency")
	}
}

func TestEmergencyWinsRaceWithPhaseUpdate(t *testing.T) {
	ps, sim := newTestStage(t)

	done := make(chan struct{})
	var once sync.Once
	var order []string

	// Fire the emergency from another context in the middle of a normal
	// update, after the high-side compare is written but before the low side.
	sim.High.CCR[0].onWrite = func(prev, next uint32) {
		order = append(order, "phase")
		once.Do(func() {
			go func() {
				ps.Emergency()
				close(done)
			}()
		})
	}
	sim.Low.CCR[1].onWrite = func(prev, next uint32) {
		order = append(order, "low")
	}

	ps.SetPhase(0, PhaseDriveHigh)
	<-done

	sim.High.CCR[0].onWrite = nil
	sim.Low.CCR[1].onWrite = nil

	// The normal update completes first, then emergency overwrites it
	expectedOrder := []string{"phase", "low", "phase", "low"}
	if strings.Join(order, ",") != strings.Join(expectedOrder, ",") {
		t.Errorf("Expected write order %v, got %v", expectedOrder, order)
	}
	for phase := 0; phase < NumPhases; phase++ {
		if out := ps.PhaseOutput(phase); out != (PhaseOutput{}) {
			t.Errorf("Phase %d: emergency lost the race: %+v", phase, out)
		}
	}

	events := Events()
	if last := events[len(events)-1]; last.Kind != EvtEmergency {
		t.Errorf("Expected emergency as last event, got %s", eventName(last.Kind))
	}
}

func TestPhaseStateString(t *testing.T) {
	names := map[PhaseState]string{
		PhaseFloating:  "floating",
		PhaseDriveLow:  "low",
		PhaseDriveHalf: "half",
		PhaseDriveHigh: "high",
		PhaseState(7):  "invalid",
	}
	for state, name := range names {
		if state.String() != name {
			t.Errorf("Expected %q, got %q", name, state.String())
		}
	}
}
