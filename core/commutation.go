package core

// NumCommutationSteps is the length of the six-step sequence
const NumCommutationSteps = 6

// CommutationStep assigns a role to each phase for one electrical step.
type CommutationStep struct {
	Positive int // sourcing, normal direction
	Negative int // sinking, inverted direction
	Floating int // disconnected for back-EMF sensing
}

// CommutationTable is the classic six-step trapezoidal sequence.
var CommutationTable = [NumCommutationSteps]CommutationStep{
	{Positive: 1, Negative: 0, Floating: 2},
	{Positive: 1, Negative: 2, Floating: 0},
	{Positive: 0, Negative: 2, Floating: 1},
	{Positive: 0, Negative: 1, Floating: 2},
	{Positive: 2, Negative: 1, Floating: 0},
	{Positive: 2, Negative: 0, Floating: 1},
}

// SetStepFromISR energizes one commutation step in a single critical
// section: the positive phase gets v in the normal direction, the negative
// phase gets v inverted and the floating phase is disconnected. Intended for
// the motor control interrupt; it never blocks.
func (ps *PowerStage) SetStepFromISR(step int, v PWMValue) {
	if !ps.initialized {
		Halt("power stage used before init")
		return
	}
	if step < 0 || step >= NumCommutationSteps {
		Halt("invalid commutation step " + itoa(step))
		return
	}
	if !ps.checkValue(v) || IsHalted() {
		return
	}

	s := CommutationTable[step]

	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	ps.writePhase(s.Positive, v, false)
	ps.writePhase(s.Negative, v, true)
	ps.resetPhase(s.Floating, 0)
	recordEvent(EvtStep, uint8(step), 0, uint32(v))
}
