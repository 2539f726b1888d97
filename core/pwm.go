// Complementary PWM power stage for a three-phase BLDC bridge.
//
// Two timers run center aligned in lockstep: the master drives the low-side
// gates, the slave drives the high-side gates and the ADC trigger. Each
// phase uses one channel on each timer. The low-side channel runs with
// inverted polarity so that the pair is complementary, and one of the two
// compare values is biased by the dead time so the edges never overlap.
package core

import "sync/atomic"

// NumPhases is the number of motor phases
const NumPhases = 3

// PWMValue is a normalized compare value in [HalfTop, Max].
type PWMValue uint32

// PhaseState is a requested output state of one phase
type PhaseState uint8

const (
	// PhaseFloating disables both gates; the phase is disconnected.
	PhaseFloating PhaseState = iota
	// PhaseDriveLow holds the low-side gate on continuously.
	PhaseDriveLow
	// PhaseDriveHalf drives 50% duty, the neutral point.
	PhaseDriveHalf
	// PhaseDriveHigh drives the maximum duty the bootstrap allows.
	PhaseDriveHigh
)

func (s PhaseState) String() string {
	switch s {
	case PhaseFloating:
		return "floating"
	case PhaseDriveLow:
		return "low"
	case PhaseDriveHalf:
		return "half"
	case PhaseDriveHigh:
		return "high"
	default:
		return "invalid"
	}
}

// PowerStage owns the timer pair. Exactly one may exist per process.
type PowerStage struct {
	hw       Peripherals
	cfg      BoardConfig
	channels ChannelMap
	low      *TimerRegisters
	high     *TimerRegisters

	limits      Limits
	initialized bool
}

var (
	stageClaimed uint32 // atomic bool
	stageOwner   atomic.Pointer[PowerStage]
)

func activeStage() *PowerStage {
	return stageOwner.Load()
}

// NewPowerStage claims the power stage. There is exactly one output stage
// on the board, so a second claim is a safety violation.
func NewPowerStage(hw Peripherals, cfg BoardConfig) *PowerStage {
	if !atomic.CompareAndSwapUint32(&stageClaimed, 0, 1) {
		Halt("power stage already claimed")
		return nil
	}

	channels := hw.ChannelMap()
	if !validChannelMap(channels) {
		atomic.StoreUint32(&stageClaimed, 0)
		Halt("invalid channel map")
		return nil
	}

	ps := &PowerStage{
		hw:       hw,
		cfg:      cfg,
		channels: channels,
		low:      hw.LowSide(),
		high:     hw.HighSide(),
	}
	stageOwner.Store(ps)
	return ps
}

// Release gives up ownership so a new stage can be claimed. Outputs are
// shut down first. Only host tools and tests release a stage.
func (ps *PowerStage) Release() {
	if stageOwner.CompareAndSwap(ps, nil) {
		ps.Emergency()
		atomic.StoreUint32(&stageClaimed, 0)
	}
}

// Limits returns the tick limits computed at init.
func (ps *PowerStage) Limits() Limits {
	return ps.limits
}

// Initialized reports whether Init has completed.
func (ps *PowerStage) Initialized() bool {
	return ps.initialized
}

// Init configures and starts both timers and leaves every phase floating.
// Must complete before any other entry point is used.
func (ps *PowerStage) Init() {
	SafetyAssert(!ps.initialized, "power stage already initialized")

	limits, err := ComputeLimits(ps.cfg)
	if err != nil {
		Halt("pwm limits: " + err.Error())
		return
	}
	ps.limits = limits

	ps.initTimers()
	ps.startTimers()

	Log("Motor: PWM max: " + utoa(limits.Max) + "; Dead time: " + utoa(limits.DeadTime) + " ticks")

	state := disableInterrupts()
	recordEvent(EvtInit, 0, limits.Max, limits.DeadTime)
	restoreInterrupts(state)

	ps.initialized = true

	// Required to complete the initialization
	ps.SetFreewheeling()
}

func (ps *PowerStage) initTimers() {
	state := disableInterrupts()
	ps.hw.ResetTimers()
	restoreInterrupts(state)

	for _, tim := range [2]*TimerRegisters{ps.low, ps.high} {
		tim.ARR.Set(ps.limits.Top)

		// Buffered update, center-aligned PWM
		tim.CR1.Set(TIM_CR1_ARPE | TIM_CR1_CMS_0)

		// All four channels in PWM mode 1 with preload and fast enable
		tim.CCMR1.Set(ccmrPWM())
		tim.CCMR2.Set(ccmrPWM())

		// No inversion by default
		tim.CCER.Set(TIM_CCER_ALL_ENABLED)
	}

	// ADC sampling starts ahead of the PWM center so the result is ready
	// before the next commutation decision.
	ps.high.CCR[ps.channels.ADCTrigger].Set(ps.limits.ADCTriggerTicks())

	// Load the preloaded registers. Counters stay stopped.
	ps.low.EGR.Set(TIM_EGR_UG)
	ps.high.EGR.Set(TIM_EGR_UG | TIM_EGR_COMG)
}

// startTimers starts both counters on the same clock edge. There is no
// single register that enables two timers, so the slave is chained to the
// master's enable event and the chain is removed right after.
func (ps *PowerStage) startTimers() {
	SafetyAssert(!ps.low.CR1.HasBits(TIM_CR1_CEN), "low-side timer running before start")
	SafetyAssert(!ps.high.CR1.HasBits(TIM_CR1_CEN), "high-side timer running before start")

	state := disableInterrupts()
	// Low side is the master, TRGO on counter enable
	ps.low.CR2.SetBits(TIM_CR2_MMS_0)
	// High side is the slave, started by ITR2
	ps.high.SMCR.Set(TIM_SMCR_SMS_TRIGGER | TIM_SMCR_MSM | TIM_SMCR_TS_1)

	ps.low.CR1.SetBits(TIM_CR1_CEN)

	// Remove the synchronization
	ps.low.CR2.ClearBits(TIM_CR2_MMS)
	ps.high.SMCR.Set(0)
	restoreInterrupts(state)

	SafetyAssert(ps.low.CR1.HasBits(TIM_CR1_CEN), "low-side timer did not start")
	SafetyAssert(ps.high.CR1.HasBits(TIM_CR1_CEN), "high-side timer did not start")
}

// Running reports the counter enable bit of both timers.
func (ps *PowerStage) Running() (low, high bool) {
	return ps.low.CR1.HasBits(TIM_CR1_CEN), ps.high.CR1.HasBits(TIM_CR1_CEN)
}

// checkPhase halts on a bad phase index. The result only matters when the
// halt handler returns.
func (ps *PowerStage) checkPhase(phase int) bool {
	if !ps.initialized {
		Halt("power stage used before init")
		return false
	}
	if phase < 0 || phase >= NumPhases {
		Halt("invalid phase index " + itoa(phase))
		return false
	}
	return true
}

// writePhase applies a normalized value to one phase with dead time.
// Caller holds the critical section.
//
// Normal direction: high side not inverted, low side inverted.
// Inverted direction: high side inverted, low side not inverted.
// The register of the shorter physical pulse gets the dead time so its
// edge is delayed, never advanced.
func (ps *PowerStage) writePhase(phase int, v PWMValue, inverted bool) {
	highPol := ccerPolarity(ps.channels.High[phase])
	lowPol := ccerPolarity(ps.channels.Low[phase])

	high := uint32(v)
	low := uint32(v)
	above := uint32(v) > ps.limits.HalfTop

	if inverted {
		ps.low.CCER.ClearBits(lowPol)
		ps.high.CCER.SetBits(highPol)

		// Inverted phase shall have greater PWM value than non-inverted one
		if above {
			low -= ps.limits.DeadTime
		} else {
			high += ps.limits.DeadTime
		}
	} else {
		ps.low.CCER.SetBits(lowPol)
		ps.high.CCER.ClearBits(highPol)

		if above {
			high -= ps.limits.DeadTime
		} else {
			low += ps.limits.DeadTime
		}
	}

	ps.high.CCR[ps.channels.High[phase]].Set(high)
	ps.low.CCR[ps.channels.Low[phase]].Set(low)
}

// resetPhase clears both inversions, shuts the high side and sets the low
// side compare value. Caller holds the critical section.
func (ps *PowerStage) resetPhase(phase int, low uint32) {
	ps.low.CCER.ClearBits(ccerPolarity(ps.channels.Low[phase]))
	ps.high.CCER.ClearBits(ccerPolarity(ps.channels.High[phase]))
	ps.high.CCR[ps.channels.High[phase]].Set(0)
	ps.low.CCR[ps.channels.Low[phase]].Set(low)
}

// SetPhase puts one phase into the requested state. Not re-entrant: calls
// from normal and interrupt context must not interleave on one phase.
func (ps *PowerStage) SetPhase(phase int, state PhaseState) {
	if !ps.checkPhase(phase) {
		return
	}

	switch state {
	case PhaseDriveHigh, PhaseDriveHalf:
		if IsHalted() {
			return
		}
		// High needs the high-side pump cycling; half is 50% duty, which is
		// duty 0 for complementary PWM.
		var duty uint32
		if state == PhaseDriveHigh {
			duty = DutyCycleMax
		}
		v := ps.Normalize(duty, DutyCycleResolution)
		ps.applyPhase(phase, state, v)

	case PhaseDriveLow:
		if IsHalted() {
			return
		}
		ps.applyReset(phase, state, ps.limits.Top)

	case PhaseFloating:
		ps.applyReset(phase, state, 0)

	default:
		Halt("invalid phase state " + utoa(uint32(state)))
	}
}

func (ps *PowerStage) applyPhase(phase int, state PhaseState, v PWMValue) {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	ps.writePhase(phase, v, false)
	recordEvent(EvtPhase, uint8(phase), uint32(state), uint32(v))
}

func (ps *PowerStage) applyReset(phase int, state PhaseState, low uint32) {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	ps.resetPhase(phase, low)
	recordEvent(EvtPhase, uint8(phase), uint32(state), low)
}

// SetPhaseValue applies a previously normalized value with dead time in the
// given direction. inverted selects the sinking direction used for the
// negative phase of a commutation step.
func (ps *PowerStage) SetPhaseValue(phase int, v PWMValue, inverted bool) {
	if !ps.checkPhase(phase) || !ps.checkValue(v) || IsHalted() {
		return
	}

	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	ps.writePhase(phase, v, inverted)
	var inv uint32
	if inverted {
		inv = 1
	}
	recordEvent(EvtPhaseRaw, uint8(phase), inv, uint32(v))
}

func (ps *PowerStage) checkValue(v PWMValue) bool {
	if uint32(v) < ps.limits.HalfTop || uint32(v) > ps.limits.Max {
		Halt("pwm value out of range " + utoa(uint32(v)))
		return false
	}
	return true
}

// SetFreewheeling floats every phase.
func (ps *PowerStage) SetFreewheeling() {
	for phase := 0; phase < NumPhases; phase++ {
		ps.SetPhase(phase, PhaseFloating)
	}
}

// Emergency turns every gate off in a single critical section. It writes
// the registers directly and does not go through the phase controller or
// the normalizer. Safe from any context, constant time.
func (ps *PowerStage) Emergency() {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	for phase := 0; phase < NumPhases; phase++ {
		// Disable inversions
		ps.low.CCER.ClearBits(ccerPolarity(ps.channels.Low[phase]))
		ps.high.CCER.ClearBits(ccerPolarity(ps.channels.High[phase]))
		// Shutdown both gates
		ps.high.CCR[ps.channels.High[phase]].Set(0)
		ps.low.CCR[ps.channels.Low[phase]].Set(0)
	}
	recordEvent(EvtEmergency, 0, 0, 0)
}

// PhaseOutput is the hardware-visible state of one phase.
type PhaseOutput struct {
	High         uint32 // high-side compare value
	Low          uint32 // low-side compare value
	HighInverted bool
	LowInverted  bool
}

// PhaseMode is the decoded output mode of a phase
type PhaseMode uint8

const (
	ModeFloating PhaseMode = iota // both gates off
	ModeLow                       // low side held on
	ModeNormal                    // modulated, sourcing
	ModeInverted                  // modulated, sinking
)

func (m PhaseMode) String() string {
	switch m {
	case ModeFloating:
		return "floating"
	case ModeLow:
		return "low"
	case ModeNormal:
		return "normal"
	case ModeInverted:
		return "inverted"
	default:
		return "invalid"
	}
}

// PhaseOutput reads back the registers of one phase.
func (ps *PowerStage) PhaseOutput(phase int) PhaseOutput {
	if phase < 0 || phase >= NumPhases {
		Halt("invalid phase index " + itoa(phase))
		return PhaseOutput{}
	}

	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	return PhaseOutput{
		High:         ps.high.CCR[ps.channels.High[phase]].Get(),
		Low:          ps.low.CCR[ps.channels.Low[phase]].Get(),
		HighInverted: ps.high.CCER.HasBits(ccerPolarity(ps.channels.High[phase])),
		LowInverted:  ps.low.CCER.HasBits(ccerPolarity(ps.channels.Low[phase])),
	}
}

// PhaseMode decodes the registers of one phase.
func (ps *PowerStage) PhaseMode(phase int) PhaseMode {
	out := ps.PhaseOutput(phase)
	switch {
	case out.HighInverted:
		return ModeInverted
	case out.LowInverted:
		return ModeNormal
	case out.High == 0 && out.Low == 0:
		return ModeFloating
	default:
		return ModeLow
	}
}
