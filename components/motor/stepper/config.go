// Package stepper drives a step/dir/enable stepper driver (DM332T and
// similar) with trapezoidal speed profiles, and homes it against a switch.
package stepper

import (
	"time"

	"go.viam.com/utils"
)

// Driver timing defaults, per the DM332T datasheet minimums with margin.
const (
	defaultPulseWidth = 10 * time.Microsecond
	defaultDirSetup   = 5 * time.Microsecond
)

// PinConfig defines where the driver is wired.
type PinConfig struct {
	Step      string `json:"step"`
	Direction string `json:"dir"`
	Enable    string `json:"en,omitempty"`
}

// Config describes an axis. It is immutable after the axis is built;
// speed and acceleration set here are starting values for SetSpeed and
// friends.
type Config struct {
	Pins        PinConfig `json:"pins"`
	StepsPerRev int       `json:"steps_per_rev"`
	StepsPerMm  float64   `json:"step_per_mm"`

	// InvertDir flips the direction pin polarity. Which way is "toward
	// the switch" is a per-deployment calibration, not a constant.
	InvertDir bool `json:"invert_dir,omitempty"`

	// Most drivers enable on a low line; set this for the other kind.
	EnableActiveHigh bool `json:"enable_active_high,omitempty"`

	PulseWidthUsec int `json:"pulse_width_usec,omitempty"` // default 10
	DirSetupUsec   int `json:"dir_setup_usec,omitempty"`   // default 5

	MaxSpeed     float64 `json:"speed"`        // steps/s
	Acceleration float64 `json:"acceleration"` // steps/s²
	Deceleration float64 `json:"deceleration"` // steps/s²

	// ConstantSpeed disables profiling: every step at MaxSpeed.
	ConstantSpeed bool `json:"constant_speed,omitempty"`

	// ManualUpdate skips the background stepping goroutine; the caller
	// must pump Update itself.
	ManualUpdate bool `json:"manual_update,omitempty"`
}

// Validate ensures all parts of the config are valid. Non-positive
// physics parameters are rejected here, never clamped to a default.
func (cfg *Config) Validate(path string) error {
	if cfg.Pins.Step == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.step")
	}
	if cfg.Pins.Direction == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.dir")
	}
	if cfg.StepsPerRev <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "steps_per_rev")
	}
	if cfg.StepsPerMm <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "step_per_mm")
	}
	if cfg.MaxSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "speed")
	}
	if !cfg.ConstantSpeed {
		if cfg.Acceleration <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "acceleration")
		}
		if cfg.Deceleration <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "deceleration")
		}
	}
	if cfg.PulseWidthUsec < 0 || cfg.DirSetupUsec < 0 {
		return utils.NewConfigValidationError(path, errNegativeTiming)
	}
	return nil
}

func (cfg *Config) pulseWidth() time.Duration {
	if cfg.PulseWidthUsec == 0 {
		return defaultPulseWidth
	}
	return time.Duration(cfg.PulseWidthUsec) * time.Microsecond
}

func (cfg *Config) dirSetup() time.Duration {
	if cfg.DirSetupUsec == 0 {
		return defaultDirSetup
	}
	return time.Duration(cfg.DirSetupUsec) * time.Microsecond
}
