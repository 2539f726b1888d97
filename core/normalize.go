package core

// Normalize converts a logical duty cycle of the given resolution into a
// center-aligned compare value. 0 maps to the neutral HalfTop, the maximum
// maps to Max. Pure; callable from any context once Init has run.
//
// Complementary center-aligned PWM produces one edge per counter
// direction, so the R_hw-bit duty d only spans the upper half of the
// counter: ticks = TOP - (TOP - d) / 2.
// Ref. "Influence of PWM Schemes and Commutation Methods for DC and
// Brushless Motors and Drives", page 4.
func (ps *PowerStage) Normalize(duty uint32, resolution uint8) PWMValue {
	l := &ps.limits
	if l.Top == 0 {
		Halt("normalize before init")
		return 0
	}
	if resolution <= l.Resolution || resolution > 32 {
		Halt("duty resolution " + utoa(uint32(resolution)))
		return PWMValue(l.HalfTop)
	}
	if duty>>resolution != 0 {
		Halt("duty cycle out of range " + utoa(duty))
		return PWMValue(l.HalfTop)
	}

	// Discard extra least significant bits
	d := duty >> (resolution - l.Resolution)

	ticks := l.Top - (l.Top-d)/2

	// Maintain the proper cycling for the high-side pump capacitor
	if ticks > l.Max {
		ticks = l.Max
	}

	if ticks < l.HalfTop || ticks > l.Top {
		Halt("normalized duty out of range " + utoa(ticks))
		return PWMValue(l.HalfTop)
	}
	return PWMValue(ticks)
}
