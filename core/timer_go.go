//go:build !tinygo

package core

// SimClock is a manually advanced Clock for host builds. Udelay advances
// the clock instead of waiting.
type SimClock struct {
	now    uint64
	delays []uint32
}

// NewSimClock returns a clock starting at zero.
func NewSimClock() *SimClock {
	return &SimClock{}
}

func (c *SimClock) Hnsec() uint64 {
	return c.now
}

func (c *SimClock) Udelay(us uint32) {
	c.delays = append(c.delays, us)
	c.now += uint64(us) * HnsecPerUsec
}

// Advance moves the clock forward.
func (c *SimClock) Advance(hnsec uint64) {
	c.now += hnsec
}

// Delays returns every Udelay argument seen so far.
func (c *SimClock) Delays() []uint32 {
	return c.delays
}
