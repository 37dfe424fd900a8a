// Package drawer is the presence-gated drawer state machine: open when
// nobody is around, closed when someone approaches.
package drawer

import (
	"context"
	"fmt"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/board"
	"github.com/man0n0n0/TOF-drawer/components/display"
	"github.com/man0n0n0/TOF-drawer/components/motor/stepper"
	"github.com/man0n0n0/TOF-drawer/components/sensor/presence"
)

// State is the drawer's lifecycle state. Transitions happen only through
// the controller's run loop.
type State int

// The four drawer states. The initial state is established by the
// mandatory homing run at startup.
const (
	StateClosed State = iota
	StateOpen
	StateMovingToClosed
	StateMovingToOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateMovingToClosed:
		return "MOVING_TO_CLOSED"
	case StateMovingToOpen:
		return "MOVING_TO_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A Sampler hands out the latest completed presence decision.
// *presence.Detector is the production implementation.
type Sampler interface {
	Latest() (presence.Sample, bool)
}

// Config parameterizes the controller. Key names follow the firmware's
// config.json.
type Config struct {
	OutDistanceMm float64 `json:"d_out"`      // how far the drawer opens
	ForwardSpeed  float64 `json:"forw_speed"` // steps/s, opening
	BackSpeed     float64 `json:"back_speed"` // steps/s, closing

	// NearHomeMm is where the profiled close move hands over to homing,
	// so the switch rather than dead reckoning defines closed. Default 10.
	NearHomeMm float64 `json:"near_home_mm,omitempty"`

	// WaitInsideMs delays re-evaluation after closing, so transient
	// sensor noise cannot bounce the drawer straight back open.
	WaitInsideMs int `json:"wait_inside,omitempty"`

	PollIntervalMs int `json:"poll_ms,omitempty"` // default 100

	// HomingRetries bounds retries on homing timeout before the
	// controller latches faulted with the motor disabled. Default 3.
	HomingRetries int `json:"homing_retries,omitempty"`

	Homing stepper.HomeConfig `json:"-"`
}

const (
	defaultNearHomeMm    = 10.0
	defaultPoll          = 100 * time.Millisecond
	defaultHomingRetries = 3
)

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.OutDistanceMm <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "d_out")
	}
	if cfg.ForwardSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "forw_speed")
	}
	if cfg.BackSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "back_speed")
	}
	if cfg.NearHomeMm < 0 || cfg.WaitInsideMs < 0 || cfg.PollIntervalMs < 0 || cfg.HomingRetries < 0 {
		return utils.NewConfigValidationError(path, errors.New("durations, distances and retries must be non-negative"))
	}
	return nil
}

func (cfg *Config) nearHomeMm() float64 {
	if cfg.NearHomeMm == 0 {
		return defaultNearHomeMm
	}
	return cfg.NearHomeMm
}

func (cfg *Config) pollInterval() time.Duration {
	if cfg.PollIntervalMs == 0 {
		return defaultPoll
	}
	return time.Duration(cfg.PollIntervalMs) * time.Millisecond
}

func (cfg *Config) homingRetries() int {
	if cfg.HomingRetries == 0 {
		return defaultHomingRetries
	}
	return cfg.HomingRetries
}

func (cfg *Config) waitInside() time.Duration {
	return time.Duration(cfg.WaitInsideMs) * time.Millisecond
}

// A Controller runs the state machine. It is the only writer of the
// axis's motion state; the presence sampler runs on its own goroutine
// and shares nothing but the sample cell.
type Controller struct {
	cfg     Config
	axis    *stepper.Axis
	samples Sampler
	sw      board.DigitalInput
	disp    display.Display
	logger  golog.Logger

	state   atomic.Int64
	faulted atomic.Bool
}

// New builds a controller. Nothing moves until Run.
func New(
	cfg Config,
	axis *stepper.Axis,
	samples Sampler,
	sw board.DigitalInput,
	disp display.Display,
	logger golog.Logger,
) (*Controller, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:     cfg,
		axis:    axis,
		samples: samples,
		sw:      sw,
		disp:    disp,
		logger:  logger,
	}, nil
}

// State returns the current drawer state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Faulted reports whether the controller gave up after repeated homing
// failures and disabled the drive.
func (c *Controller) Faulted() bool {
	return c.faulted.Load()
}

// Run homes the drawer (mandatory: CLOSED is defined by the switch, not
// assumed) and then watches presence until ctx is done. It returns nil
// on shutdown and an error only when the controller faults.
func (c *Controller) Run(ctx context.Context) error {
	c.disp.Show("homing...")
	if err := c.homeWithRetries(ctx); err != nil {
		if ctx.Err() != nil {
			return nil //nolint:nilerr // shutdown during homing is not a fault
		}
		return c.fault(ctx, err)
	}
	c.state.Store(int64(StateClosed))
	if err := c.axis.Enable(ctx, false); err != nil {
		return c.fault(ctx, err)
	}
	c.disp.Show("homed!", "watching...")

	for {
		sample, ok := c.samples.Latest()
		if ok {
			acted, err := c.evaluate(ctx, sample)
			if err != nil {
				if ctx.Err() != nil {
					return nil //nolint:nilerr
				}
				return c.fault(ctx, err)
			}
			if acted {
				// Re-evaluate the newest sample right away; presence may
				// have flipped while the move was in flight.
				continue
			}
		}
		if !utils.SelectContextOrWait(ctx, c.cfg.pollInterval()) {
			return nil
		}
	}
}

// evaluate performs at most one transition for the given sample.
// CLOSED+present and OPEN+absent are no-ops: already where we want to be.
func (c *Controller) evaluate(ctx context.Context, sample presence.Sample) (bool, error) {
	switch c.State() {
	case StateClosed:
		if !sample.Present {
			return true, c.openDrawer(ctx, sample)
		}
	case StateOpen:
		if sample.Present {
			return true, c.closeDrawer(ctx, sample)
		}
	case StateMovingToClosed, StateMovingToOpen:
		// Unreachable from the run loop; moves are synchronous within it.
	}
	return false, nil
}

func (c *Controller) openDrawer(ctx context.Context, sample presence.Sample) error {
	c.state.Store(int64(StateMovingToOpen))
	c.disp.Show("no detection", "opening drawer")

	if err := c.axis.Enable(ctx, true); err != nil {
		return err
	}
	if err := c.axis.SetSpeed(c.cfg.ForwardSpeed); err != nil {
		return err
	}
	if err := c.axis.MoveToMm(ctx, c.cfg.OutDistanceMm); err != nil {
		return errors.Wrap(err, "opening move failed")
	}
	if err := c.axis.Enable(ctx, false); err != nil {
		return err
	}

	c.state.Store(int64(StateOpen))
	c.disp.Show("open & watching", fmt.Sprintf("distance: %.0fmm", sample.DistanceMm))
	return nil
}

func (c *Controller) closeDrawer(ctx context.Context, sample presence.Sample) error {
	c.state.Store(int64(StateMovingToClosed))
	c.disp.Show(fmt.Sprintf("detected: %.0fmm", sample.DistanceMm), "closing drawer")

	if err := c.axis.Enable(ctx, true); err != nil {
		return err
	}
	if err := c.axis.SetSpeed(c.cfg.BackSpeed); err != nil {
		return err
	}
	// Profiled move to just shy of home, then let the switch define zero.
	if err := c.axis.MoveToMm(ctx, c.cfg.nearHomeMm()); err != nil {
		return errors.Wrap(err, "closing move failed")
	}
	if err := c.homeWithRetries(ctx); err != nil {
		return err
	}
	if err := c.axis.Enable(ctx, false); err != nil {
		return err
	}

	c.state.Store(int64(StateClosed))
	c.disp.Show("closed", "watching...")

	if dwell := c.cfg.waitInside(); dwell > 0 {
		utils.SelectContextOrWait(ctx, dwell)
	}
	return nil
}

func (c *Controller) homeWithRetries(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.axis.Home(ctx, c.sw, c.cfg.Homing)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !stepper.IsHomingTimeoutError(err) {
			return err
		}
		if attempt >= c.cfg.homingRetries() {
			return errors.Wrapf(err, "homing failed after %d attempts", attempt)
		}
		c.logger.Warnw("homing timed out, retrying", "attempt", attempt, "error", err)
	}
}

// fault latches the fail-safe state: motor disabled, error on the
// display, run loop exits.
func (c *Controller) fault(ctx context.Context, err error) error {
	c.faulted.Store(true)
	c.logger.Errorw("drawer controller faulted", "error", err)
	c.disp.Show("ERROR", err.Error())
	utils.UncheckedError(c.axis.Enable(ctx, false))
	return err
}
