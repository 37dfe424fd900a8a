package stepper

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/board"
	"github.com/man0n0n0/TOF-drawer/operation"
)

// idlePoll is how often the stepping worker looks for work when no move
// is active.
const idlePoll = 5 * time.Millisecond

// An Axis owns one stepper motor's position, speed settings and enable
// state. Position is the ground truth of how many pulses were actually
// emitted: it changes by exactly ±1 per pulse, strictly after the pulse
// completes, regardless of how a move ends.
//
// Moves run on a background worker goroutine and can be issued blocking
// (MoveSteps) or fire-and-forget (StartMoveSteps). With ManualUpdate set
// there is no worker and the caller pumps Update itself; blocking moves
// would deadlock there, use the Start variants.
type Axis struct {
	cfg       Config
	logger    golog.Logger
	clk       clock.Clock
	enablePin board.GPIOPin // nil when the driver has no enable line
	pulse     pulser
	opMgr     operation.SingleOperationManager

	mu       sync.Mutex
	position int64
	target   int64
	enabled  bool
	maxSpeed float64
	accel    float64
	decel    float64
	move     *activeMove

	workers *utils.StoppableWorkers // nil with ManualUpdate
}

type activeMove struct {
	profile   *Profile
	dir       int64 // +1 or -1
	emitted   int
	freeRun   bool
	freeDelay time.Duration
	due       time.Time
	done      chan struct{}
}

// NewAxis validates the config, resolves pins on the board, and starts
// the stepping worker (unless ManualUpdate is set). The axis comes up
// disabled.
func NewAxis(ctx context.Context, cfg Config, b board.Board, logger golog.Logger) (*Axis, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	a := &Axis{
		cfg:      cfg,
		logger:   logger,
		clk:      clock.New(),
		maxSpeed: cfg.MaxSpeed,
		accel:    cfg.Acceleration,
		decel:    cfg.Deceleration,
	}

	var err error
	a.pulse.stepPin, err = b.GPIOPinByName(cfg.Pins.Step)
	if err != nil {
		return nil, err
	}
	a.pulse.dirPin, err = b.GPIOPinByName(cfg.Pins.Direction)
	if err != nil {
		return nil, err
	}
	if cfg.Pins.Enable != "" {
		a.enablePin, err = b.GPIOPinByName(cfg.Pins.Enable)
		if err != nil {
			return nil, err
		}
	}
	a.pulse.invertDir = cfg.InvertDir
	a.pulse.pulseWidth = cfg.pulseWidth()
	a.pulse.dirSetup = cfg.dirSetup()

	if err := a.setEnablePin(ctx, false); err != nil {
		return nil, errors.Wrap(err, "setting initial enable level")
	}

	if !cfg.ManualUpdate {
		a.workers = utils.NewBackgroundStoppableWorkers(a.runLoop)
	}
	return a, nil
}

func (a *Axis) runLoop(ctx context.Context) {
	for {
		sleep, err := a.Update(ctx)
		if err != nil {
			a.logger.Errorw("error stepping axis", "error", err)
		}
		if !utils.SelectContextOrWait(ctx, sleep) {
			return
		}
	}
}

// Update emits at most one due step of the active move and returns how
// long until the next one (zero when the schedule is already behind, the
// idle poll interval when there is nothing to do). The lock is released
// between steps, so Stop, Enable and position reads from other
// goroutines get in even at step rates the emitter cannot keep up with.
func (a *Axis) Update(ctx context.Context) (time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mv := a.move
	if mv == nil || !a.enabled {
		return idlePoll, nil
	}

	now := a.clk.Now()
	if now.Before(mv.due) {
		return mv.due.Sub(now), nil
	}

	if err := a.pulse.step(ctx, int(mv.dir)); err != nil {
		return time.Second, errors.Wrap(err, "error stepping")
	}
	a.position += mv.dir
	mv.emitted++

	if !mv.freeRun && mv.emitted >= mv.profile.Len() {
		a.finishMoveLocked()
		return idlePoll, nil
	}

	delay := mv.freeDelay
	if !mv.freeRun {
		delay = mv.profile.Delay(mv.emitted - 1)
	}
	mv.due = mv.due.Add(delay)

	// When emission itself ran past the schedule, re-anchor instead of
	// accumulating debt the emitter can never pay back.
	if now = a.clk.Now(); mv.due.Before(now) {
		mv.due = now
		return 0, nil
	}
	return mv.due.Sub(now), nil
}

// Enable drives the enable line per the configured polarity. Disabling
// halts any in-flight move; the axis keeps the position it reached.
func (a *Axis) Enable(ctx context.Context, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !on {
		a.cancelMoveLocked()
	}
	a.enabled = on
	return a.setEnablePin(ctx, on)
}

func (a *Axis) setEnablePin(ctx context.Context, on bool) error {
	if a.enablePin == nil {
		return nil
	}
	high := on
	if !a.cfg.EnableActiveHigh {
		high = !on
	}
	return a.enablePin.Set(ctx, high)
}

// SetSpeed sets the cruise speed in steps/s for moves started afterwards.
// In-flight moves keep the profile they started with.
func (a *Axis) SetSpeed(speed float64) error {
	if speed <= 0 {
		return errors.Errorf("speed must be positive, got %v", speed)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxSpeed = speed
	return nil
}

// SetAcceleration sets the acceleration in steps/s² for future moves.
func (a *Axis) SetAcceleration(accel float64) error {
	if accel <= 0 {
		return errors.Errorf("acceleration must be positive, got %v", accel)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accel = accel
	return nil
}

// SetDeceleration sets the deceleration in steps/s² for future moves.
func (a *Axis) SetDeceleration(decel float64) error {
	if decel <= 0 {
		return errors.Errorf("deceleration must be positive, got %v", decel)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decel = decel
	return nil
}

// Speed returns the current cruise speed setting in steps/s.
func (a *Axis) Speed() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxSpeed
}

// MoveSteps moves the given signed number of steps and returns when the
// move has ended. A move halted by Stop or Enable(false) is not an
// error: position stays valid and reflects the pulses actually sent.
func (a *Axis) MoveSteps(ctx context.Context, steps int64) error {
	opCtx, done := a.opMgr.New(ctx)
	defer done()

	mv, err := a.startMove(opCtx, steps)
	if err != nil || mv == nil {
		return err
	}
	return a.waitForMove(opCtx, ctx, mv)
}

// StartMoveSteps starts the same move without waiting for it.
func (a *Axis) StartMoveSteps(ctx context.Context, steps int64) error {
	a.opMgr.CancelRunning(ctx)
	_, err := a.startMove(ctx, steps)
	return err
}

// MoveToPosition moves to an absolute step position.
func (a *Axis) MoveToPosition(ctx context.Context, target int64) error {
	return a.MoveSteps(ctx, target-a.Position())
}

// MoveMm moves a signed distance in millimeters. Fractional steps are
// truncated toward zero.
func (a *Axis) MoveMm(ctx context.Context, mm float64) error {
	return a.MoveSteps(ctx, int64(mm*a.cfg.StepsPerMm))
}

// MoveToMm moves to an absolute position in millimeters. Fractional
// steps are truncated toward zero.
func (a *Axis) MoveToMm(ctx context.Context, mm float64) error {
	return a.MoveToPosition(ctx, int64(mm*a.cfg.StepsPerMm))
}

// FreeRun starts unbounded stepping in the given direction at the
// current speed setting, until Stop.
func (a *Axis) FreeRun(ctx context.Context, dir int) error {
	if dir != 1 && dir != -1 {
		return errors.Errorf("direction must be +1 or -1, got %d", dir)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return ErrNotEnabled
	}
	a.cancelMoveLocked()
	a.move = &activeMove{
		dir:       int64(dir),
		freeRun:   true,
		freeDelay: delayFor(a.maxSpeed),
		due:       a.clk.Now(),
		done:      make(chan struct{}),
	}
	return nil
}

// Stop halts step generation at the next safe pulse boundary. Because
// pulses are emitted with the axis lock held, Stop cannot return while a
// pulse is mid-flight. The axis stays enabled.
func (a *Axis) Stop(ctx context.Context) error {
	a.opMgr.CancelRunning(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelMoveLocked()
	return nil
}

// OverwritePosition sets the position counter without moving, e.g. after
// homing. It must not be called while a move is running.
func (a *Axis) OverwritePosition(pos int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.move != nil {
		return ErrOverwriteWhileMoving
	}
	a.position = pos
	a.target = pos
	return nil
}

// Position returns the current position in steps.
func (a *Axis) Position() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// PositionMm returns the current position in millimeters.
func (a *Axis) PositionMm() float64 {
	return float64(a.Position()) / a.cfg.StepsPerMm
}

// IsMoving reports whether a move is in flight.
func (a *Axis) IsMoving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.move != nil
}

// Enabled reports the enable state.
func (a *Axis) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Close stops the worker and disables the drive.
func (a *Axis) Close(ctx context.Context) error {
	if a.workers != nil {
		a.workers.Stop()
	}
	return multierr.Combine(a.Stop(ctx), a.Enable(ctx, false))
}

// startMove plans a profile at the current settings and hands it to the
// worker. A zero-step move is a no-op returning (nil, nil): no pulses,
// nothing to wait for.
func (a *Axis) startMove(ctx context.Context, steps int64) (*activeMove, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return nil, ErrNotEnabled
	}
	if steps == 0 {
		return nil, nil
	}

	var dir int64 = 1
	count := steps
	if steps < 0 {
		dir = -1
		count = -steps
	}

	var profile *Profile
	var err error
	if a.cfg.ConstantSpeed {
		profile, err = PlanConstant(int(count), a.maxSpeed)
	} else {
		profile, err = PlanMove(int(count), a.maxSpeed, a.accel, a.decel)
	}
	if err != nil {
		return nil, err
	}

	a.cancelMoveLocked()
	mv := &activeMove{
		profile: profile,
		dir:     dir,
		due:     a.clk.Now(),
		done:    make(chan struct{}),
	}
	a.move = mv
	a.target = a.position + steps
	return mv, nil
}

// waitForMove blocks until mv ends. The operation context is cancelled
// both by an external Stop and by the caller's own context going away;
// only the latter is an error, so the caller's context is checked to
// tell them apart.
func (a *Axis) waitForMove(opCtx, callerCtx context.Context, mv *activeMove) error {
	select {
	case <-mv.done:
		return nil
	case <-opCtx.Done():
	}

	if callerCtx.Err() != nil {
		a.mu.Lock()
		// Only halt the move we were waiting on; it may already have
		// been superseded.
		if a.move == mv {
			a.cancelMoveLocked()
		}
		a.mu.Unlock()
		return callerCtx.Err()
	}

	// The operation was cancelled by Stop or a superseding one; whoever
	// did that halts the move, and a halted move is a state, not an
	// error.
	<-mv.done
	return nil
}

// finishMoveLocked and cancelMoveLocked both release waiters; a halted
// move is a state, not an error.
func (a *Axis) finishMoveLocked() {
	close(a.move.done)
	a.move = nil
}

func (a *Axis) cancelMoveLocked() {
	if a.move == nil {
		return
	}
	close(a.move.done)
	a.move = nil
	a.target = a.position
}
