// Package config loads the drawer daemon's configuration: one flat JSON
// file whose keys match the firmware's config.json, with environment
// variable expansion for deployment-specific values like pin numbers.
package config

import (
	"encoding/json"
	"os"

	"github.com/a8m/envsubst"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/motor/stepper"
	"github.com/man0n0n0/TOF-drawer/components/sensor/presence"
	"github.com/man0n0n0/TOF-drawer/drawer"
)

// Pins says where everything is wired. Values are GPIO line offsets on
// the configured chip, as decimal strings.
type Pins struct {
	Step       string `json:"step"`
	Dir        string `json:"dir"`
	Enable     string `json:"en,omitempty"`
	HomeSwitch string `json:"home_sw"`

	// Radar is the presence radar's OUT line. Empty means the daemon runs
	// with whatever presence source the caller wires in (e.g. simulation).
	Radar string `json:"radar,omitempty"`

	// Chip is the gpiochip device name. Default "gpiochip0".
	Chip string `json:"chip,omitempty"`
}

// ChipDevice returns the full device path of the configured gpiochip.
func (p *Pins) ChipDevice() string {
	chip := p.Chip
	if chip == "" {
		chip = "gpiochip0"
	}
	return "/dev/" + chip
}

// Config is the whole daemon configuration. Zero fields fall back to the
// defaults from Default; only pins have no default.
type Config struct {
	// Detection.
	ThresholdMm     float64 `json:"d_threshold"`
	SmoothingWindow int     `json:"smoothing_window,omitempty"`
	SensorPollMs    int     `json:"sensor_poll_ms,omitempty"`
	SensorTimeoutMs int     `json:"sensor_timeout_ms,omitempty"`

	// Motion.
	BackSpeed        float64 `json:"back_speed"`
	ForwardSpeed     float64 `json:"forw_speed"`
	Acceleration     float64 `json:"acceleration"`
	Deceleration     float64 `json:"deceleration"`
	ConstantSpeed    bool    `json:"constant_speed,omitempty"`
	StepsPerRev      int     `json:"steps_per_rev"`
	StepsPerMm       float64 `json:"step_per_mm"`
	InvertDir        bool    `json:"invert_dir,omitempty"`
	EnableActiveHigh bool    `json:"enable_active_high,omitempty"`

	// Behavior.
	OutDistanceMm float64 `json:"d_out"`
	NearHomeMm    float64 `json:"near_home_mm,omitempty"`
	WaitInsideMs  int     `json:"wait_inside,omitempty"`
	PollMs        int     `json:"poll_ms,omitempty"`

	// Homing.
	HomingSpeed        float64 `json:"homing_speed,omitempty"`
	HomingDir          int     `json:"homing_dir,omitempty"`
	HomingBackoffSteps int     `json:"homing_backoff_steps,omitempty"`
	HomingTimeoutMs    int     `json:"homing_timeout_ms,omitempty"`
	HomingRetries      int     `json:"homing_retries,omitempty"`

	Pins Pins `json:"pins"`
}

// Default returns the factory configuration, matching the values the
// firmware ships with. Pins are left empty on purpose.
func Default() Config {
	return Config{
		ThresholdMm:   1000,
		BackSpeed:     8100,
		ForwardSpeed:  1100,
		Acceleration:  60000,
		Deceleration:  30000,
		StepsPerRev:   3200,
		StepsPerMm:    25.6,
		OutDistanceMm: 220,
		WaitInsideMs:  3000,
		HomingSpeed:   500,
	}
}

// Read loads the config file at path, expanding ${VAR} references from
// the environment. A missing file is not an error: the daemon starts on
// defaults so a wiped SD card still yields a working drawer, matching
// the firmware's behavior. A present but invalid file is fatal.
func Read(path string, logger golog.Logger) (Config, error) {
	cfg := Default()

	contents, err := envsubst.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnw("config file missing, using defaults", "path", path)
			return cfg, cfg.Validate("")
		}
		return Config{}, errors.Wrapf(err, "reading config %q", path)
	}

	if err := json.Unmarshal(contents, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %q", path)
	}
	if err := cfg.Validate(""); err != nil {
		return Config{}, errors.Wrapf(err, "validating config %q", path)
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid. It delegates to
// the component configs so a bad value is rejected at startup, not when
// the drawer first tries to move.
func (cfg *Config) Validate(path string) error {
	scfg := cfg.Sensor()
	if err := scfg.Validate(path); err != nil {
		return err
	}
	dcfg := cfg.Drawer()
	if err := dcfg.Validate(path); err != nil {
		return err
	}
	motor := cfg.Motor()
	// Pin assignments are deployment-specific and may legitimately be
	// absent when simulating; everything else must hold.
	motor.Pins = stepper.PinConfig{Step: "0", Direction: "0"}
	if err := motor.Validate(path); err != nil {
		return err
	}
	if cfg.HomingDir < -1 || cfg.HomingDir > 1 {
		return utils.NewConfigValidationError(path, errors.New("homing_dir must be -1, 0 or 1"))
	}
	return nil
}

// Motor assembles the axis config. MaxSpeed starts at the closing speed;
// the controller sets the speed per move anyway.
func (cfg *Config) Motor() stepper.Config {
	return stepper.Config{
		Pins: stepper.PinConfig{
			Step:      cfg.Pins.Step,
			Direction: cfg.Pins.Dir,
			Enable:    cfg.Pins.Enable,
		},
		StepsPerRev:      cfg.StepsPerRev,
		StepsPerMm:       cfg.StepsPerMm,
		InvertDir:        cfg.InvertDir,
		EnableActiveHigh: cfg.EnableActiveHigh,
		MaxSpeed:         cfg.BackSpeed,
		Acceleration:     cfg.Acceleration,
		Deceleration:     cfg.Deceleration,
		ConstantSpeed:    cfg.ConstantSpeed,
	}
}

// Homing assembles the homing config.
func (cfg *Config) Homing() stepper.HomeConfig {
	return stepper.HomeConfig{
		Speed:        cfg.HomingSpeed,
		Dir:          cfg.HomingDir,
		BackoffSteps: cfg.HomingBackoffSteps,
		TimeoutMs:    cfg.HomingTimeoutMs,
	}
}

// Sensor assembles the presence detector config.
func (cfg *Config) Sensor() presence.Config {
	return presence.Config{
		ThresholdMm:     cfg.ThresholdMm,
		SmoothingWindow: cfg.SmoothingWindow,
		PollIntervalMs:  cfg.SensorPollMs,
		TimeoutMs:       cfg.SensorTimeoutMs,
	}
}

// Drawer assembles the controller config.
func (cfg *Config) Drawer() drawer.Config {
	return drawer.Config{
		OutDistanceMm:  cfg.OutDistanceMm,
		ForwardSpeed:   cfg.ForwardSpeed,
		BackSpeed:      cfg.BackSpeed,
		NearHomeMm:     cfg.NearHomeMm,
		WaitInsideMs:   cfg.WaitInsideMs,
		PollIntervalMs: cfg.PollMs,
		HomingRetries:  cfg.HomingRetries,
		Homing:         cfg.Homing(),
	}
}
