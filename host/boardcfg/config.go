// Package boardcfg loads ESC board timing profiles for host tools.
package boardcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"escpwm/core"

	"gopkg.in/yaml.v2"
)

// Profile is the file form of a board's output stage timing
type Profile struct {
	Name                  string `json:"name" yaml:"name"`
	TimerClockHz          uint32 `json:"timer_clock_hz" yaml:"timer_clock_hz"`
	Resolution            uint8  `json:"resolution" yaml:"resolution"`
	MinPulseNanosec       uint32 `json:"min_pulse_ns" yaml:"min_pulse_ns"`
	DeadTimeNanosec       uint32 `json:"dead_time_ns" yaml:"dead_time_ns"`
	ADCSyncAdvanceNanosec uint32 `json:"adc_sync_advance_ns" yaml:"adc_sync_advance_ns"`
}

// LoadConfig parses a JSON profile, fills in defaults and checks that the
// timing yields valid PWM limits.
func LoadConfig(jsonData []byte) (*Profile, error) {
	var profile Profile

	if err := json.Unmarshal(jsonData, &profile); err != nil {
		return nil, fmt.Errorf("parse board profile: %w", err)
	}

	return finish(&profile)
}

// LoadConfigYAML is LoadConfig for YAML profiles. Unknown keys are errors.
func LoadConfigYAML(yamlData []byte) (*Profile, error) {
	var profile Profile

	if err := yaml.UnmarshalStrict(yamlData, &profile); err != nil {
		return nil, fmt.Errorf("parse board profile: %w", err)
	}

	return finish(&profile)
}

// LoadFile reads a profile, choosing the format by extension
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board profile: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadConfigYAML(data)
	default:
		return LoadConfig(data)
	}
}

func finish(profile *Profile) (*Profile, error) {
	applyDefaults(profile)

	if _, err := core.ComputeLimits(profile.BoardConfig()); err != nil {
		return nil, fmt.Errorf("board profile %q: %w", profile.Name, err)
	}

	return profile, nil
}

// applyDefaults fills missing values from the reference board
func applyDefaults(profile *Profile) {
	def := core.DefaultBoardConfig()

	if profile.Name == "" {
		profile.Name = "reference"
	}
	if profile.TimerClockHz == 0 {
		profile.TimerClockHz = def.TimerClockHz
	}
	if profile.Resolution == 0 {
		profile.Resolution = def.Resolution
	}
	if profile.MinPulseNanosec == 0 {
		profile.MinPulseNanosec = def.MinPulseNanosec
	}
	if profile.DeadTimeNanosec == 0 {
		profile.DeadTimeNanosec = def.DeadTimeNanosec
	}
	if profile.ADCSyncAdvanceNanosec == 0 {
		profile.ADCSyncAdvanceNanosec = def.ADCSyncAdvanceNanosec
	}
}

// DefaultProfile returns the reference board profile
func DefaultProfile() *Profile {
	p := &Profile{}
	applyDefaults(p)
	return p
}

// BoardConfig converts the profile to the core representation
func (p *Profile) BoardConfig() core.BoardConfig {
	return core.BoardConfig{
		TimerClockHz:          p.TimerClockHz,
		Resolution:            p.Resolution,
		MinPulseNanosec:       p.MinPulseNanosec,
		DeadTimeNanosec:       p.DeadTimeNanosec,
		ADCSyncAdvanceNanosec: p.ADCSyncAdvanceNanosec,
	}
}
