// Package board defines the hardware pin interfaces the drawer controller
// drives. Implementations live in subpackages (gpiochip for Linux GPIO
// character devices, fake for tests).
package board

import "context"

// A GPIOPin is a single digital output or input line.
type GPIOPin interface {
	// Set sets the pin high or low. The pin is assumed to settle within
	// microseconds of the call returning.
	Set(ctx context.Context, high bool) error

	// Get reads the current level of the pin.
	Get(ctx context.Context) (bool, error)
}

// A DigitalInput is a debounced binary input, reporting true when the
// input is triggered. Debouncing is the driver's concern; callers poll.
type DigitalInput interface {
	Value(ctx context.Context) (bool, error)
}

// A Board owns named pins. Pin names are board-specific (line offsets for
// gpiochip, arbitrary strings for the fake board).
type Board interface {
	GPIOPinByName(name string) (GPIOPin, error)

	// Close releases any pins held by the board.
	Close(ctx context.Context) error
}

type activeLowInput struct {
	pin GPIOPin
}

// NewActiveLowInput wraps an input pin as a DigitalInput that reads true
// when the pin is pulled low. Matches a normally-open home switch wired
// to ground with a pull-up.
func NewActiveLowInput(pin GPIOPin) DigitalInput {
	return &activeLowInput{pin: pin}
}

func (in *activeLowInput) Value(ctx context.Context) (bool, error) {
	high, err := in.pin.Get(ctx)
	if err != nil {
		return false, err
	}
	return !high, nil
}

type activeHighInput struct {
	pin GPIOPin
}

// NewActiveHighInput wraps an input pin as a DigitalInput that reads true
// when the pin is high. Matches a presence radar's OUT pin.
func NewActiveHighInput(pin GPIOPin) DigitalInput {
	return &activeHighInput{pin: pin}
}

func (in *activeHighInput) Value(ctx context.Context) (bool, error) {
	return in.pin.Get(ctx)
}
