//go:build stm32f103

package main

import (
	"escpwm/core"
	"runtime/volatile"
	"unsafe"
)

// STM32F103 general purpose timer register block
type timerMap struct {
	CR1   volatile.Register32
	CR2   volatile.Register32
	SMCR  volatile.Register32
	DIER  volatile.Register32
	SR    volatile.Register32
	EGR   volatile.Register32
	CCMR1 volatile.Register32
	CCMR2 volatile.Register32
	CCER  volatile.Register32
	CNT   volatile.Register32
	PSC   volatile.Register32
	ARR   volatile.Register32
	RCR   volatile.Register32
	CCR   [4]volatile.Register32
}

// Peripheral memory map
const (
	tim3Base  = 0x40000400
	tim4Base  = 0x40000800
	gpioABase = 0x40010800
	gpioBBase = 0x40010C00
	rccBase   = 0x40021000

	rccAPB1RSTR = rccBase + 0x10
	rccAPB2ENR  = rccBase + 0x18
	rccAPB1ENR  = rccBase + 0x1C
)

const (
	rccAPB1_TIM3 = 1 << 1
	rccAPB1_TIM4 = 1 << 2

	rccAPB2_IOPA = 1 << 2
	rccAPB2_IOPB = 1 << 3

	// Alternate function push-pull, 50 MHz
	gpioModeAFPushPull = 0xB
)

var (
	tim3 = (*timerMap)(unsafe.Pointer(uintptr(tim3Base)))
	tim4 = (*timerMap)(unsafe.Pointer(uintptr(tim4Base)))

	apb1rstr = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1RSTR)))
	apb1enr  = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1ENR)))
	apb2enr  = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB2ENR)))
)

// gpioPort is the configuration half of a GPIO register block
type gpioPort struct {
	CRL volatile.Register32
	CRH volatile.Register32
}

var (
	gpioA = (*gpioPort)(unsafe.Pointer(uintptr(gpioABase)))
	gpioB = (*gpioPort)(unsafe.Pointer(uintptr(gpioBBase)))
)

// setPinMode writes the 4-bit mode/config field of one pin
func (p *gpioPort) setPinMode(pin uint8, mode uint32) {
	reg := &p.CRL
	if pin >= 8 {
		reg = &p.CRH
		pin -= 8
	}
	shift := uint32(pin) * 4
	reg.Set(reg.Get()&^(0xF<<shift) | mode<<shift)
}

func (t *timerMap) registers() *core.TimerRegisters {
	return &core.TimerRegisters{
		CR1:   &t.CR1,
		CR2:   &t.CR2,
		SMCR:  &t.SMCR,
		EGR:   &t.EGR,
		CCMR1: &t.CCMR1,
		CCMR2: &t.CCMR2,
		CCER:  &t.CCER,
		ARR:   &t.ARR,
		CCR:   [4]core.Register{&t.CCR[0], &t.CCR[1], &t.CCR[2], &t.CCR[3]},
	}
}

// stm32Timers is the TIM3/TIM4 output stage. TIM3 is the master and drives
// the low sides on CH2-CH4, TIM4 drives the high sides on CH1-CH3 and
// triggers the ADC on CH4.
type stm32Timers struct {
	low  *core.TimerRegisters
	high *core.TimerRegisters
}

func newSTM32Timers() *stm32Timers {
	apb2enr.SetBits(rccAPB2_IOPA | rccAPB2_IOPB)

	// Low side: PA7, PB0, PB1 (TIM3 CH2-CH4)
	gpioA.setPinMode(7, gpioModeAFPushPull)
	gpioB.setPinMode(0, gpioModeAFPushPull)
	gpioB.setPinMode(1, gpioModeAFPushPull)

	// High side: PB6, PB7, PB8 (TIM4 CH1-CH3)
	gpioB.setPinMode(6, gpioModeAFPushPull)
	gpioB.setPinMode(7, gpioModeAFPushPull)
	gpioB.setPinMode(8, gpioModeAFPushPull)

	return &stm32Timers{
		low:  tim3.registers(),
		high: tim4.registers(),
	}
}

func (t *stm32Timers) LowSide() *core.TimerRegisters  { return t.low }
func (t *stm32Timers) HighSide() *core.TimerRegisters { return t.high }

// ResetTimers pulses the RCC reset lines of both timers
func (t *stm32Timers) ResetTimers() {
	apb1enr.SetBits(rccAPB1_TIM3 | rccAPB1_TIM4)
	apb1rstr.SetBits(rccAPB1_TIM3 | rccAPB1_TIM4)
	apb1rstr.ClearBits(rccAPB1_TIM3 | rccAPB1_TIM4)
}

func (t *stm32Timers) ChannelMap() core.ChannelMap {
	return core.DefaultChannelMap
}
