//go:build stm32f103

package main

import (
	"escpwm/core"
	"machine"
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/tone"
)

// Startup tune, played through the motor windings
var startupNotes = []tone.Note{tone.C5, tone.E5, tone.G5}

const (
	beepDurationMs = 120
	beepGapMs      = 60
)

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	// Console output for commissioning and halt reports
	core.SetDebugWriter(func(msg string) {
		machine.Serial.Write([]byte(msg))
		machine.Serial.Write([]byte("\r\n"))
	})

	// Outputs are already off when the handler runs. Park until reset.
	core.SetHaltHandler(func(reason string) {
		interrupt.Disable()
		for {
		}
	})

	core.Log("escpwm on stm32f103 (drivers " + drivers.Version + ")")

	stage := core.NewPowerStage(newSTM32Timers(), boardConfig)
	stage.Init()

	clock := core.NewHardwareClock()
	for _, note := range startupNotes {
		core.Beep(stage, clock, noteFrequency(note), beepDurationMs)
		time.Sleep(beepGapMs * time.Millisecond)
	}

	// Phases stay floating until a commutation source calls SetStepFromISR
	for {
		time.Sleep(100 * time.Millisecond)
	}
}

// noteFrequency converts a note period in nanoseconds to Hz
func noteFrequency(note tone.Note) int {
	period := note.Period()
	if period == 0 {
		return 0
	}
	return int(1000000000 / period)
}
