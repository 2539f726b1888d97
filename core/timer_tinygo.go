//go:build tinygo

package core

import (
	"time"

	"tinygo.org/x/drivers/delay"
)

// HardwareClock reads the runtime monotonic timer and busy-waits with
// cycle-counted delays.
type HardwareClock struct {
	boot time.Time
}

// NewHardwareClock returns a clock counting from now.
func NewHardwareClock() *HardwareClock {
	return &HardwareClock{boot: time.Now()}
}

func (c *HardwareClock) Hnsec() uint64 {
	return uint64(time.Since(c.boot)) / 100
}

func (c *HardwareClock) Udelay(us uint32) {
	delay.Sleep(time.Duration(us) * time.Microsecond)
}
