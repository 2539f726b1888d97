// Package dryrun drives the power stage against simulated timers and prints
// what each commutation step does to the outputs.
package dryrun

import (
	"errors"
	"fmt"
	"io"

	"escpwm/core"
)

// Run initializes a power stage on simulated timers, walks the six
// commutation steps at the given 14-bit duty and ends with an emergency
// shutdown. A safety halt is returned as an error.
func Run(w io.Writer, cfg core.BoardConfig, duty uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*core.SafetyViolation)
			if !ok {
				panic(r)
			}
			core.ClearHalt()
			err = v
		}
	}()

	core.SetDebugWriter(func(s string) {
		fmt.Fprintln(w, s)
	})
	defer core.SetDebugWriter(nil)

	ps := core.NewPowerStage(core.NewSimTimerPair(), cfg)
	if ps == nil {
		return errors.New("power stage already claimed")
	}
	defer ps.Release()

	ps.Init()
	l := ps.Limits()
	fmt.Fprintf(w, "PWM frequency: %d Hz\n", cfg.PWMFrequency())
	fmt.Fprintf(w, "TOP: %d; neutral: %d; max: %d; min pulse: %d; dead time: %d; ADC trigger: %d ticks\n",
		l.Top, l.HalfTop, l.Max, l.MinPulse, l.DeadTime, l.ADCTriggerTicks())

	v := ps.Normalize(duty, core.DutyCycleResolution)
	fmt.Fprintf(w, "Duty %d/%d -> %d ticks\n", duty, core.DutyCycleMax, v)

	for step := 0; step < core.NumCommutationSteps; step++ {
		ps.SetStepFromISR(step, v)
		fmt.Fprintf(w, "Step %d:", step)
		for phase := 0; phase < core.NumPhases; phase++ {
			out := ps.PhaseOutput(phase)
			fmt.Fprintf(w, " %c=%-8s(hi %4d lo %4d)", 'A'+phase, ps.PhaseMode(phase), out.High, out.Low)
		}
		fmt.Fprintln(w)
	}

	ps.Emergency()
	fmt.Fprintln(w, "Emergency: all phases", ps.PhaseMode(0), ps.PhaseMode(1), ps.PhaseMode(2))
	return nil
}
