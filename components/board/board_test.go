package board_test

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/man0n0n0/TOF-drawer/components/board"
	fakeboard "github.com/man0n0n0/TOF-drawer/components/board/fake"
)

func TestActiveLowInput(t *testing.T) {
	ctx := context.Background()
	b := fakeboard.NewBoard()
	pin, err := b.GPIOPinByName("21")
	test.That(t, err, test.ShouldBeNil)

	// A pulled-up switch line reads high when open, low when pressed.
	in := board.NewActiveLowInput(pin)
	test.That(t, pin.Set(ctx, true), test.ShouldBeNil)
	v, err := in.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeFalse)

	test.That(t, pin.Set(ctx, false), test.ShouldBeNil)
	v, err = in.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeTrue)
}

func TestActiveHighInput(t *testing.T) {
	ctx := context.Background()
	b := fakeboard.NewBoard()
	pin, err := b.GPIOPinByName("20")
	test.That(t, err, test.ShouldBeNil)

	in := board.NewActiveHighInput(pin)
	v, err := in.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeFalse)

	test.That(t, pin.Set(ctx, true), test.ShouldBeNil)
	v, err = in.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeTrue)
}
