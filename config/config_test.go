package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(""), test.ShouldBeNil)

	// The factory values the drawers ship with.
	test.That(t, cfg.ThresholdMm, test.ShouldEqual, 1000.0)
	test.That(t, cfg.BackSpeed, test.ShouldEqual, 8100.0)
	test.That(t, cfg.ForwardSpeed, test.ShouldEqual, 1100.0)
	test.That(t, cfg.OutDistanceMm, test.ShouldEqual, 220.0)
	test.That(t, cfg.StepsPerMm, test.ShouldEqual, 25.6)
	test.That(t, cfg.WaitInsideMs, test.ShouldEqual, 3000)
	test.That(t, cfg.HomingSpeed, test.ShouldEqual, 500.0)
}

func TestReadMissingFileFallsBack(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := Read(filepath.Join(t.TempDir(), "nope.json"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestReadOverridesDefaults(t *testing.T) {
	logger := golog.NewTestLogger(t)
	path := writeConfig(t, `{
		"d_threshold": 800,
		"d_out": 150,
		"wait_inside": 500,
		"pins": {"step": "13", "dir": "19", "en": "26", "home_sw": "21", "radar": "20"}
	}`)

	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ThresholdMm, test.ShouldEqual, 800.0)
	test.That(t, cfg.OutDistanceMm, test.ShouldEqual, 150.0)
	test.That(t, cfg.WaitInsideMs, test.ShouldEqual, 500)

	// Untouched keys keep the defaults.
	test.That(t, cfg.BackSpeed, test.ShouldEqual, 8100.0)
	test.That(t, cfg.StepsPerRev, test.ShouldEqual, 3200)
	test.That(t, cfg.Pins.Step, test.ShouldEqual, "13")
}

func TestReadExpandsEnv(t *testing.T) {
	logger := golog.NewTestLogger(t)
	t.Setenv("DRAWER_STEP_PIN", "13")
	path := writeConfig(t, `{"pins": {"step": "${DRAWER_STEP_PIN}", "dir": "19", "home_sw": "21"}}`)

	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Pins.Step, test.ShouldEqual, "13")
}

func TestReadRejectsGarbage(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := Read(writeConfig(t, `{not json`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(writeConfig(t, `{"d_threshold": -5}`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(writeConfig(t, `{"forw_speed": 0}`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(writeConfig(t, `{"homing_dir": 2}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComponentAssembly(t *testing.T) {
	cfg := Default()
	cfg.Pins = Pins{Step: "13", Dir: "19", Enable: "26", HomeSwitch: "21"}
	cfg.HomingBackoffSteps = 100

	motor := cfg.Motor()
	test.That(t, motor.Pins.Step, test.ShouldEqual, "13")
	test.That(t, motor.Pins.Direction, test.ShouldEqual, "19")
	test.That(t, motor.StepsPerMm, test.ShouldEqual, 25.6)
	test.That(t, motor.Acceleration, test.ShouldEqual, 60000.0)
	test.That(t, motor.Validate(""), test.ShouldBeNil)

	dcfg := cfg.Drawer()
	test.That(t, dcfg.OutDistanceMm, test.ShouldEqual, 220.0)
	test.That(t, dcfg.Homing.Speed, test.ShouldEqual, 500.0)
	test.That(t, dcfg.Homing.BackoffSteps, test.ShouldEqual, 100)

	scfg := cfg.Sensor()
	test.That(t, scfg.ThresholdMm, test.ShouldEqual, 1000.0)
	test.That(t, scfg.Validate(""), test.ShouldBeNil)
}

func TestChipDevice(t *testing.T) {
	p := Pins{}
	test.That(t, p.ChipDevice(), test.ShouldEqual, "/dev/gpiochip0")
	p.Chip = "gpiochip4"
	test.That(t, p.ChipDevice(), test.ShouldEqual, "/dev/gpiochip4")
}
