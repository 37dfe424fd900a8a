//go:build linux

// Package gpiochip implements the board interfaces on top of the Linux
// GPIO character device (/dev/gpiochipN), by way of mkch's gpio package.
package gpiochip

import (
	"context"
	"strconv"
	"sync"

	"github.com/edaniels/golog"
	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

const consumerLabel = "tof-drawer"

// A Board hands out GPIO lines from one gpiochip device. Pin names are
// decimal line offsets ("2", "7", ...).
type Board struct {
	devicePath string
	logger     golog.Logger

	mu   sync.Mutex
	pins map[uint32]*gpioPin
}

// NewBoard returns a board backed by the gpiochip at devicePath.
func NewBoard(devicePath string, logger golog.Logger) *Board {
	return &Board{
		devicePath: devicePath,
		logger:     logger,
		pins:       map[uint32]*gpioPin{},
	}
}

// GPIOPinByName returns the line at the given decimal offset.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	offset, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "gpiochip pin names are line offsets, got %q", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[uint32(offset)]; ok {
		return p, nil
	}
	p := &gpioPin{devicePath: b.devicePath, offset: uint32(offset)}
	b.pins[uint32(offset)] = p
	return p, nil
}

// Close releases every line the board has opened.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, p := range b.pins {
		err = multierr.Combine(err, p.close())
	}
	return err
}

type gpioPin struct {
	// Both immutable.
	devicePath string
	offset     uint32

	mu     sync.Mutex
	line   *gpio.Line
	output bool
}

// openLine must be called with the mutex held. Lines are requested lazily
// in the direction of first use and re-requested on direction change.
func (pin *gpioPin) openLine(output bool) error {
	if pin.line != nil {
		if pin.output == output {
			return nil
		}
		if err := pin.line.Close(); err != nil {
			return err
		}
		pin.line = nil
	}

	chip, err := gpio.OpenChip(pin.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	var line *gpio.Line
	if output {
		// The 0 just means the line starts low; Set follows immediately.
		line, err = chip.OpenLine(pin.offset, 0, gpio.Output, consumerLabel)
	} else {
		line, err = chip.OpenLine(pin.offset, 0, gpio.Input, consumerLabel)
	}
	if err != nil {
		return err
	}
	pin.line = line
	pin.output = output
	return nil
}

// Set implements board.GPIOPin.
func (pin *gpioPin) Set(ctx context.Context, high bool) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openLine(true); err != nil {
		return err
	}
	var value byte
	if high {
		value = 1
	}
	return pin.line.SetValue(value)
}

// Get implements board.GPIOPin.
func (pin *gpioPin) Get(ctx context.Context) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openLine(false); err != nil {
		return false, err
	}
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	// Anything non-zero is high.
	return value != 0, nil
}

func (pin *gpioPin) close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return nil
	}
	err := pin.line.Close()
	pin.line = nil
	return err
}
