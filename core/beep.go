package core

// PhaseDriver is the part of the phase controller the beep utility needs.
type PhaseDriver interface {
	SetPhase(phase int, state PhaseState)
	SetFreewheeling()
}

// beepEnergizeUsec is how long a phase is driven per half period.
const beepEnergizeUsec = 9

// Beep plays a tone through the motor windings by pulsing phases 0 and 2
// against phase 1, which is held low. It busy-waits for durationMs and
// leaves every phase floating. Not interrupt safe.
func Beep(out PhaseDriver, clk Clock, frequencyHz, durationMs int) {
	out.SetFreewheeling()
	if frequencyHz <= 0 || durationMs <= 0 {
		return
	}

	out.SetPhase(1, PhaseDriveLow)

	halfPeriodUsec := uint32(1000000/frequencyHz) / 2
	end := clk.Hnsec() + uint64(durationMs)*HnsecPerMsec

	for end > clk.Hnsec() {
		for _, phase := range [2]int{0, 2} {
			out.SetPhase(phase, PhaseDriveHigh)
			clk.Udelay(beepEnergizeUsec)
			out.SetPhase(phase, PhaseFloating)
			clk.Udelay(halfPeriodUsec)
		}
	}

	out.SetFreewheeling()
}
