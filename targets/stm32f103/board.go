//go:build stm32f103

package main

import "escpwm/core"

// Reference board: STM32F103 at 72 MHz, IR2301S gate drivers with
// IRLR7843 transistors. The timers run from the doubled APB1 clock.
var boardConfig = core.BoardConfig{
	TimerClockHz:          72000000,
	Resolution:            10,
	MinPulseNanosec:       300,
	DeadTimeNanosec:       400,
	ADCSyncAdvanceNanosec: 1500,
}
