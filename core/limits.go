package core

// Limits are the tick values derived from a BoardConfig. They are computed
// once at init and never change afterwards.
type Limits struct {
	Resolution uint8
	Top        uint32 // reload value
	HalfTop    uint32 // neutral output
	Max        uint32 // highest normalized duty, keeps the bootstrap charged
	MinPulse   uint32 // minimum low-side pulse in ticks
	DeadTime   uint32 // dead time in ticks
	ADCAdvance uint32 // ADC trigger advance in ticks
}

// ADCTriggerTicks is the compare value of the ADC trigger channel.
func (l Limits) ADCTriggerTicks() uint32 {
	return l.HalfTop - l.ADCAdvance
}

// LimitError reports a timing parameter outside its permitted share of the
// PWM period. It means the clock tree or board timing is misconfigured.
type LimitError struct {
	Field string
	Value uint32 // offending value, in ticks where applicable
	Bound uint32 // exclusive upper bound
}

func (e *LimitError) Error() string {
	return e.Field + " out of range: " + utoa(e.Value) + " (bound " + utoa(e.Bound) + ")"
}

// nsToTicks converts nanoseconds to whole timer ticks, truncating.
func nsToTicks(ns, clockHz uint32) uint32 {
	return uint32(uint64(ns) * uint64(clockHz) / 1000000000)
}

// belowShare reports whether ns expressed in ticks, before truncation, is
// strictly below num/den of top.
func belowShare(ns, clockHz, top, num, den uint32) bool {
	return uint64(ns)*uint64(clockHz)*uint64(den) < uint64(top)*uint64(num)*1000000000
}

// ComputeLimits derives the tick limits of a board. Minimum pulse and dead
// time must stay under 5% of TOP, the ADC advance under 30% of TOP.
func ComputeLimits(cfg BoardConfig) (Limits, error) {
	if cfg.Resolution < MinResolution || cfg.Resolution > MaxResolution {
		return Limits{}, &LimitError{Field: "resolution", Value: uint32(cfg.Resolution), Bound: MaxResolution + 1}
	}
	if cfg.TimerClockHz == 0 {
		return Limits{}, &LimitError{Field: "timer clock", Value: 0, Bound: 0}
	}

	l := Limits{
		Resolution: cfg.Resolution,
		Top:        uint32(1)<<cfg.Resolution - 1,
		HalfTop:    (uint32(1) << cfg.Resolution) / 2,
	}

	if !belowShare(cfg.MinPulseNanosec, cfg.TimerClockHz, l.Top, 5, 100) {
		return Limits{}, &LimitError{Field: "min pulse", Value: nsToTicks(cfg.MinPulseNanosec, cfg.TimerClockHz), Bound: l.Top / 20}
	}
	l.MinPulse = nsToTicks(cfg.MinPulseNanosec, cfg.TimerClockHz)

	// Center-aligned PWM produces the pulse twice per period, so only half
	// of the minimum pulse is taken off the top.
	l.Max = l.Top - (l.MinPulse/2 + 1)

	if !belowShare(cfg.DeadTimeNanosec, cfg.TimerClockHz, l.Top, 5, 100) {
		return Limits{}, &LimitError{Field: "dead time", Value: nsToTicks(cfg.DeadTimeNanosec, cfg.TimerClockHz), Bound: l.Top / 20}
	}
	// Dead time is applied to a single edge and is not halved.
	l.DeadTime = nsToTicks(cfg.DeadTimeNanosec, cfg.TimerClockHz)

	if !belowShare(cfg.ADCSyncAdvanceNanosec, cfg.TimerClockHz, l.Top, 30, 100) {
		return Limits{}, &LimitError{Field: "adc trigger advance", Value: nsToTicks(cfg.ADCSyncAdvanceNanosec, cfg.TimerClockHz), Bound: l.Top * 3 / 10}
	}
	l.ADCAdvance = nsToTicks(cfg.ADCSyncAdvanceNanosec, cfg.TimerClockHz)

	return l, nil
}
