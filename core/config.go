package core

// BoardConfig holds the physical timing of the output stage. Firmware bakes
// it in at build time: the gate drivers and transistors are board specific
// silicon, so none of this is runtime configurable.
type BoardConfig struct {
	TimerClockHz uint32 // timer input clock
	Resolution   uint8  // PWM bit resolution, TOP = 2^Resolution - 1

	// Minimum low-side pulse that keeps the high-side bootstrap capacitor charged.
	MinPulseNanosec uint32

	// Gate driver shoot-through margin between complementary edges.
	DeadTimeNanosec uint32

	// How far before the PWM center the ADC is triggered.
	ADCSyncAdvanceNanosec uint32
}

// Logical duty-cycle resolution used by the phase controller.
const (
	DutyCycleResolution = 14
	DutyCycleMax        = 1<<DutyCycleResolution - 1
)

// Accepted range of the PWM resolution.
const (
	MinResolution = 8
	MaxResolution = DutyCycleResolution - 1
)

// DefaultBoardConfig returns the timing of the reference board: 72 MHz timer
// clock and 10-bit center-aligned PWM (35.15 kHz), IR2301S drivers with
// IRLR7843 transistors.
//
// Measured shoot-through current at 35 kHz: 300 ns dead time ~2 mA,
// 400 ns below 1 mA.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		TimerClockHz:          72000000,
		Resolution:            10,
		MinPulseNanosec:       300,
		DeadTimeNanosec:       400,
		ADCSyncAdvanceNanosec: 1500,
	}
}

// PWMFrequency returns the center-aligned PWM frequency in Hz:
// f = clock / ((TOP + 1) * 2).
func (c BoardConfig) PWMFrequency() uint32 {
	if c.Resolution == 0 || c.Resolution > 31 {
		return 0
	}
	return c.TimerClockHz / ((uint32(1) << c.Resolution) * 2)
}
