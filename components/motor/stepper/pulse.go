package stepper

import (
	"context"
	"time"

	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

// pulser owns the step and direction lines and knows the driver's timing
// requirements. It is always used with the axis lock held, so a pulse can
// never be interleaved with a stop.
type pulser struct {
	stepPin    board.GPIOPin
	dirPin     board.GPIOPin
	invertDir  bool
	pulseWidth time.Duration
	dirSetup   time.Duration

	lastDir int // 0 until the first step
}

// step emits one pulse in the given direction (+1/-1). If the direction
// changed since the last pulse, the direction line is asserted first and
// given its setup time to settle. The call does not return before the
// pulse's high phase has elapsed and the line is low again.
func (p *pulser) step(ctx context.Context, dir int) error {
	if dir != p.lastDir {
		high := dir > 0
		if p.invertDir {
			high = !high
		}
		if err := p.dirPin.Set(ctx, high); err != nil {
			return err
		}
		settle(ctx, p.dirSetup)
		p.lastDir = dir
	}

	if err := p.stepPin.Set(ctx, true); err != nil {
		return err
	}
	settle(ctx, p.pulseWidth)
	return p.stepPin.Set(ctx, false)
}

// settle waits out a driver timing requirement. Timer-based waits cost
// about a millisecond of granularity, which would cap the step rate far
// below what the driver takes, so microsecond waits busy-spin.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= time.Millisecond {
		utils.SelectContextOrWait(ctx, d)
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
