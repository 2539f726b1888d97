package core

// ChannelMap tells the power stage which compare channel of each timer
// belongs to which motor phase. Channel indexes are zero based (CH1 = 0).
type ChannelMap struct {
	High       [NumPhases]uint8 // high-side gate, on the slave timer
	Low        [NumPhases]uint8 // low-side gate, on the master timer
	ADCTrigger uint8            // slave timer channel that triggers the ADC
}

// DefaultChannelMap is the STM32F1 layout: TIM4 CH1-CH3 drive the high side,
// TIM3 CH2-CH4 drive the low side and TIM4 CH4 triggers the ADC.
var DefaultChannelMap = ChannelMap{
	High:       [NumPhases]uint8{0, 1, 2},
	Low:        [NumPhases]uint8{1, 2, 3},
	ADCTrigger: 3,
}

// Peripherals is the abstract timer-pair interface that core code uses.
// Platform-specific implementations map it onto real registers.
type Peripherals interface {
	// LowSide returns the master timer, which drives the low-side gates.
	LowSide() *TimerRegisters

	// HighSide returns the slave timer, which drives the high-side gates
	// and the ADC trigger.
	HighSide() *TimerRegisters

	// ResetTimers enables the peripheral clocks of both timers and pulses
	// their reset lines. Called with interrupts disabled.
	ResetTimers()

	// ChannelMap returns the phase to compare-channel wiring of the board.
	ChannelMap() ChannelMap
}

func validChannelMap(m ChannelMap) bool {
	var used uint8
	for i := 0; i < NumPhases; i++ {
		if m.Low[i] > 3 || used&(1<<m.Low[i]) != 0 {
			return false
		}
		used |= 1 << m.Low[i]
	}
	used = 1 << m.ADCTrigger
	if m.ADCTrigger > 3 {
		return false
	}
	for i := 0; i < NumPhases; i++ {
		if m.High[i] > 3 || used&(1<<m.High[i]) != 0 {
			return false
		}
		used |= 1 << m.High[i]
	}
	return true
}
