package stepper

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

// Defaults for homing. The switch is polled every tick; at the default
// homing speed one step takes 2ms, so a 1ms poll keeps the overrun after
// trigger within a step.
const (
	defaultHomingSpeed   = 500.0
	defaultHomingTimeout = 30 * time.Second
	homeSwitchPoll       = time.Millisecond

	// backoffSpeedCap bounds the backoff move regardless of homing speed.
	backoffSpeedCap = 200.0
)

// HomeConfig parameterizes a homing run. Zero values take the defaults
// above. Dir defaults to -1; which way the switch sits is a
// per-deployment calibration, like InvertDir.
type HomeConfig struct {
	Speed        float64       `json:"homing_speed,omitempty"`
	Dir          int           `json:"homing_dir,omitempty"`
	BackoffSteps int           `json:"homing_backoff_steps,omitempty"`
	Timeout      time.Duration `json:"-"`
	TimeoutMs    int           `json:"homing_timeout_ms,omitempty"`
}

func (hc HomeConfig) speed() float64 {
	if hc.Speed <= 0 {
		return defaultHomingSpeed
	}
	return hc.Speed
}

func (hc HomeConfig) dir() int {
	if hc.Dir == 0 {
		return -1
	}
	return hc.Dir
}

func (hc HomeConfig) timeout() time.Duration {
	if hc.Timeout > 0 {
		return hc.Timeout
	}
	if hc.TimeoutMs > 0 {
		return time.Duration(hc.TimeoutMs) * time.Millisecond
	}
	return defaultHomingTimeout
}

// Home runs the axis toward the switch at a bounded speed, stops on
// trigger, zeroes the position, then backs off the configured number of
// steps and zeroes again. The speed setting is restored afterwards.
//
// If the switch never triggers within the timeout the axis is stopped
// and a HomingTimeoutError returned; position still reflects every pulse
// emitted, so the caller can retry or fail safe.
func (a *Axis) Home(ctx context.Context, sw board.DigitalInput, hc HomeConfig) error {
	ctx, done := a.opMgr.New(ctx)
	defer done()

	prevSpeed := a.Speed()
	defer func() {
		utils.UncheckedError(a.SetSpeed(prevSpeed))
	}()

	if err := a.Enable(ctx, true); err != nil {
		return errors.Wrap(err, "enabling axis for homing")
	}
	if err := a.SetSpeed(hc.speed()); err != nil {
		return err
	}

	// Already sitting on the switch: skip the approach, just re-zero.
	triggered, err := sw.Value(ctx)
	if err != nil {
		return errors.Wrap(err, "reading home switch")
	}

	if !triggered {
		if err := a.FreeRun(ctx, hc.dir()); err != nil {
			return err
		}
		deadline := a.clk.Now().Add(hc.timeout())
		for {
			triggered, err := sw.Value(ctx)
			if err != nil {
				utils.UncheckedError(a.Stop(ctx))
				return errors.Wrap(err, "reading home switch")
			}
			if triggered {
				break
			}
			if a.clk.Now().After(deadline) {
				utils.UncheckedError(a.Stop(ctx))
				return &HomingTimeoutError{Timeout: hc.timeout()}
			}
			if !utils.SelectContextOrWait(ctx, homeSwitchPoll) {
				utils.UncheckedError(a.Stop(ctx))
				return ctx.Err()
			}
		}
	}

	if err := a.Stop(ctx); err != nil {
		return err
	}
	if err := a.OverwritePosition(0); err != nil {
		return err
	}

	if hc.BackoffSteps > 0 {
		if err := a.SetSpeed(math.Min(backoffSpeedCap, hc.speed())); err != nil {
			return err
		}
		// Back off opposite the homing direction to release the switch.
		if err := a.MoveSteps(ctx, -int64(hc.dir())*int64(hc.BackoffSteps)); err != nil {
			return err
		}
		if err := a.OverwritePosition(0); err != nil {
			return err
		}
	}
	return nil
}
