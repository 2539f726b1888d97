package core

// SimRegister is an in-memory Register used by host builds and tests.
type SimRegister struct {
	value  uint32
	writes uint32

	// onWrite is called after every software write with the previous and new value.
	onWrite func(prev, next uint32)
}

func (r *SimRegister) Get() uint32 {
	return r.value
}

func (r *SimRegister) Set(value uint32) {
	old := r.value
	r.value = value
	r.writes++
	if r.onWrite != nil {
		r.onWrite(old, value)
	}
}

func (r *SimRegister) SetBits(value uint32) {
	r.Set(r.value | value)
}

func (r *SimRegister) ClearBits(value uint32) {
	r.Set(r.value &^ value)
}

func (r *SimRegister) HasBits(value uint32) bool {
	return r.value&value != 0
}

// Writes returns the number of software writes since the last reset.
func (r *SimRegister) Writes() uint32 {
	return r.writes
}

// SimTimer is a simulated timer register file.
type SimTimer struct {
	CR1, CR2, SMCR, EGR, CCMR1, CCMR2, CCER, ARR SimRegister
	CCR                                          [4]SimRegister
}

func (t *SimTimer) registers() *TimerRegisters {
	return &TimerRegisters{
		CR1:   &t.CR1,
		CR2:   &t.CR2,
		SMCR:  &t.SMCR,
		EGR:   &t.EGR,
		CCMR1: &t.CCMR1,
		CCMR2: &t.CCMR2,
		CCER:  &t.CCER,
		ARR:   &t.ARR,
		CCR:   [4]Register{&t.CCR[0], &t.CCR[1], &t.CCR[2], &t.CCR[3]},
	}
}

func (t *SimTimer) all() []*SimRegister {
	return []*SimRegister{
		&t.CR1, &t.CR2, &t.SMCR, &t.EGR, &t.CCMR1, &t.CCMR2, &t.CCER, &t.ARR,
		&t.CCR[0], &t.CCR[1], &t.CCR[2], &t.CCR[3],
	}
}

// reset clears every register and write counter, keeping hooks in place.
func (t *SimTimer) reset() {
	for _, r := range t.all() {
		r.value = 0
		r.writes = 0
	}
}

// TotalWrites returns the number of software writes across all registers.
func (t *SimTimer) TotalWrites() uint32 {
	var n uint32
	for _, r := range t.all() {
		n += r.writes
	}
	return n
}

// SimTimerPair implements Peripherals on top of two simulated timers.
// It models the master/slave trigger chain: enabling the master counter while
// its CR2 selects TRGO-on-enable and the slave SMCR selects trigger mode on
// ITR2 starts the slave counter in the same cycle.
type SimTimerPair struct {
	Low      SimTimer
	High     SimTimer
	Channels ChannelMap

	// Resets counts ResetTimers calls.
	Resets int

	low, high *TimerRegisters
}

// NewSimTimerPair returns a stopped, zeroed timer pair using DefaultChannelMap.
func NewSimTimerPair() *SimTimerPair {
	p := &SimTimerPair{Channels: DefaultChannelMap}
	p.low = p.Low.registers()
	p.high = p.High.registers()
	p.Low.CR1.onWrite = p.masterCR1Written
	return p
}

func (p *SimTimerPair) masterCR1Written(prev, next uint32) {
	started := prev&TIM_CR1_CEN == 0 && next&TIM_CR1_CEN != 0
	if !started {
		return
	}
	if p.Low.CR2.value&TIM_CR2_MMS != TIM_CR2_MMS_0 {
		return
	}
	smcr := p.High.SMCR.value
	if smcr&TIM_SMCR_SMS != TIM_SMCR_SMS_TRIGGER || smcr&TIM_SMCR_TS != TIM_SMCR_TS_1 {
		return
	}
	// Hardware write, not counted as a software access.
	p.High.CR1.value |= TIM_CR1_CEN
}

func (p *SimTimerPair) LowSide() *TimerRegisters {
	return p.low
}

func (p *SimTimerPair) HighSide() *TimerRegisters {
	return p.high
}

func (p *SimTimerPair) ResetTimers() {
	p.Low.reset()
	p.High.reset()
	p.Resets++
}

func (p *SimTimerPair) ChannelMap() ChannelMap {
	return p.Channels
}

// ClearWriteCounters zeroes the write counters of both timers.
func (p *SimTimerPair) ClearWriteCounters() {
	for _, t := range []*SimTimer{&p.Low, &p.High} {
		for _, r := range t.all() {
			r.writes = 0
		}
	}
}
