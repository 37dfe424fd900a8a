package stepper

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils"

	fakeboard "github.com/man0n0n0/TOF-drawer/components/board/fake"
)

func TestHomeAlreadyOnSwitch(t *testing.T) {
	ctx := context.Background()
	a, b := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	sw.Trigger(true)

	test.That(t, a.OverwritePosition(123), test.ShouldBeNil)
	test.That(t, a.Home(ctx, sw, HomeConfig{}), test.ShouldBeNil)

	// No approach needed: zeroed in place without a single pulse.
	test.That(t, a.Position(), test.ShouldEqual, 0)
	test.That(t, stepPin(t, b).RisingEdges(), test.ShouldEqual, 0)
	test.That(t, a.IsMoving(), test.ShouldBeFalse)
}

func TestHomeApproach(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	utils.PanicCapturingGo(func() {
		// The switch sits some pulses away in the homing direction.
		for a.Position() > -20 {
			time.Sleep(time.Millisecond)
		}
		sw.Trigger(true)
	})

	prevSpeed := a.Speed()
	test.That(t, a.Home(ctx, sw, HomeConfig{Speed: 2000}), test.ShouldBeNil)

	test.That(t, a.Position(), test.ShouldEqual, 0)
	test.That(t, a.IsMoving(), test.ShouldBeFalse)
	test.That(t, a.Enabled(), test.ShouldBeTrue)
	test.That(t, a.Speed(), test.ShouldEqual, prevSpeed)
}

func TestHomeTimeout(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	err := a.Home(ctx, sw, HomeConfig{Speed: 2000, TimeoutMs: 50})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, IsHomingTimeoutError(err), test.ShouldBeTrue)

	// Stopped, and position still accounts for the pulses that went out.
	test.That(t, a.IsMoving(), test.ShouldBeFalse)
	test.That(t, a.Position(), test.ShouldBeLessThan, 0)
}

func TestHomeBackoff(t *testing.T) {
	ctx := context.Background()
	a, b := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	sw.Trigger(true)

	test.That(t, a.Home(ctx, sw, HomeConfig{BackoffSteps: 10}), test.ShouldBeNil)

	// Backed off the switch (opposite the homing direction) and re-zeroed.
	test.That(t, a.Position(), test.ShouldEqual, 0)
	test.That(t, stepPin(t, b).RisingEdges(), test.ShouldEqual, 10)
}

func TestHomeTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	sw.Trigger(true)

	test.That(t, a.Home(ctx, sw, HomeConfig{}), test.ShouldBeNil)
	test.That(t, a.Home(ctx, sw, HomeConfig{}), test.ShouldBeNil)
	test.That(t, a.Position(), test.ShouldEqual, 0)
}

func TestHomeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, _ := newTestAxis(t, testConfig())

	sw := &fakeboard.DigitalInput{}
	utils.PanicCapturingGo(func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	})

	err := a.Home(ctx, sw, HomeConfig{Speed: 2000})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, IsHomingTimeoutError(err), test.ShouldBeFalse)
	test.That(t, a.IsMoving(), test.ShouldBeFalse)
}
