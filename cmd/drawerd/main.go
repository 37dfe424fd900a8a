// Package main runs the automatic drawer daemon: a time-of-flight (or
// radar) presence sensor gates a stepper-driven drawer that opens when
// nobody is around and closes when someone approaches.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.viam.com/utils"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/man0n0n0/TOF-drawer/components/board"
	fakeboard "github.com/man0n0n0/TOF-drawer/components/board/fake"
	"github.com/man0n0n0/TOF-drawer/components/board/gpiochip"
	"github.com/man0n0n0/TOF-drawer/components/display"
	"github.com/man0n0n0/TOF-drawer/components/motor/stepper"
	"github.com/man0n0n0/TOF-drawer/components/sensor/presence"
	fakepresence "github.com/man0n0n0/TOF-drawer/components/sensor/presence/fake"
	"github.com/man0n0n0/TOF-drawer/config"
	"github.com/man0n0n0/TOF-drawer/drawer"
)

var logger = golog.NewDevelopmentLogger("drawerd")

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,default=config.json,usage=path to the config file"`
	Debug      bool   `flag:"debug,usage=verbose logging"`
	Simulate   bool   `flag:"simulate,usage=run against fake hardware with a scripted visitor"`
	LogFile    string `flag:"log-file,usage=also write logs to this file (rotated)"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDebugLogger("drawerd")
	}
	if argsParsed.LogFile != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   argsParsed.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		})
		core := zapcore.NewTee(
			logger.Desugar().Core(),
			zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zap.DebugLevel),
		)
		logger = zap.New(core).Sugar()
	}

	cfg, err := config.Read(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}

	var (
		b   board.Board
		sw  board.DigitalInput
		det *presence.Detector
	)
	if argsParsed.Simulate {
		b = fakeboard.NewBoard()
		if cfg.Pins.Step == "" {
			cfg.Pins = config.Pins{Step: "step", Dir: "dir", Enable: "en", HomeSwitch: "home_sw"}
		}

		// The fake switch starts triggered so homing zeroes in place.
		fakeSw := &fakeboard.DigitalInput{}
		fakeSw.Trigger(true)
		sw = fakeSw

		src := fakepresence.NewSource(cfg.ThresholdMm * 2)
		utils.PanicCapturingGo(func() { simulateVisitor(ctx, src, cfg.ThresholdMm, logger) })

		det, err = presence.NewDetector(cfg.Sensor(), src, logger)
		if err != nil {
			return err
		}
	} else {
		if cfg.Pins.Step == "" || cfg.Pins.Dir == "" || cfg.Pins.HomeSwitch == "" {
			return errors.New("pins.step, pins.dir and pins.home_sw are required")
		}
		if cfg.Pins.Radar == "" {
			return errors.New("pins.radar is required")
		}
		b = gpiochip.NewBoard(cfg.Pins.ChipDevice(), logger)

		swPin, err := b.GPIOPinByName(cfg.Pins.HomeSwitch)
		if err != nil {
			return err
		}
		sw = board.NewActiveLowInput(swPin)

		radarPin, err := b.GPIOPinByName(cfg.Pins.Radar)
		if err != nil {
			return err
		}
		det, err = presence.NewFlagDetector(cfg.Sensor(), presence.FromInput(board.NewActiveHighInput(radarPin)), logger)
		if err != nil {
			return err
		}
	}
	defer func() {
		err = multierr.Combine(err, b.Close(context.Background()))
	}()
	defer det.Close()

	axis, err := stepper.NewAxis(ctx, cfg.Motor(), b, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, axis.Close(context.Background()))
	}()

	disp := display.Debounced(display.NewLogDisplay(logger), 200*time.Millisecond)

	ctrl, err := drawer.New(cfg.Drawer(), axis, det, sw, disp, logger)
	if err != nil {
		return err
	}
	return ctrl.Run(ctx)
}

// simulateVisitor walks a fake person in and out of range so the drawer
// cycles without hardware attached.
func simulateVisitor(ctx context.Context, src *fakepresence.Source, thresholdMm float64, logger golog.Logger) {
	near := false
	for utils.SelectContextOrWait(ctx, 15*time.Second) {
		near = !near
		if near {
			src.SetDistance(thresholdMm / 2)
		} else {
			src.SetDistance(thresholdMm * 2)
		}
		logger.Infow("simulated visitor", "present", near)
	}
}
