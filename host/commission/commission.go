// Package commission checks a freshly booted ESC against its board profile.
//
// At init the firmware prints the PWM limits it computed from its clock and
// timing constants. A mismatch with the limits computed on the host means
// the firmware was built for a different board or clock tree.
package commission

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"escpwm/core"
)

var (
	// ErrNoCommissioning is returned when the stream ends without a limits line
	ErrNoCommissioning = errors.New("no commissioning line received")

	// ErrHalted is returned when the firmware reported a safety halt
	ErrHalted = errors.New("firmware halted")
)

const limitsPrefix = "Motor: PWM max: "

// Report is the result of a commissioning check
type Report struct {
	Expected core.Limits
	Max      uint32
	DeadTime uint32
	Log      []string // every console line seen, in order
}

// ParseLimitsLine extracts the PWM maximum and dead time from the firmware's
// commissioning line. ok is false for any other line.
func ParseLimitsLine(line string) (pwmMax, deadTime uint32, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, limitsPrefix) {
		return 0, 0, false
	}
	n, err := fmt.Sscanf(line, "Motor: PWM max: %d; Dead time: %d ticks", &pwmMax, &deadTime)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return pwmMax, deadTime, true
}

// Check compares reported limits with the ones expected for cfg.
func Check(cfg core.BoardConfig, pwmMax, deadTime uint32) (core.Limits, error) {
	expected, err := core.ComputeLimits(cfg)
	if err != nil {
		return core.Limits{}, fmt.Errorf("board profile: %w", err)
	}
	if pwmMax != expected.Max {
		return expected, fmt.Errorf("pwm max mismatch: firmware %d, expected %d", pwmMax, expected.Max)
	}
	if deadTime != expected.DeadTime {
		return expected, fmt.Errorf("dead time mismatch: firmware %d ticks, expected %d", deadTime, expected.DeadTime)
	}
	return expected, nil
}

// Watch reads console lines until the commissioning line arrives and checks
// it against cfg. A safety halt reported before that is an error.
func Watch(r io.Reader, cfg core.BoardConfig) (*Report, error) {
	report := &Report{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		report.Log = append(report.Log, line)

		if strings.HasPrefix(line, "SAFETY HALT: ") {
			return report, fmt.Errorf("%w: %s", ErrHalted, strings.TrimPrefix(line, "SAFETY HALT: "))
		}

		pwmMax, deadTime, ok := ParseLimitsLine(line)
		if !ok {
			continue
		}
		report.Max = pwmMax
		report.DeadTime = deadTime

		expected, err := Check(cfg, pwmMax, deadTime)
		report.Expected = expected
		return report, err
	}

	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read console: %w", err)
	}
	return report, ErrNoCommissioning
}
