// Package fake implements an in-memory board for tests.
package fake

import (
	"context"
	"sync"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

// A Board provides fake pins and remembers everything set on them.
type Board struct {
	mu       sync.Mutex
	GPIOPins map[string]*GPIOPin
}

// NewBoard returns an empty fake board. Pins are created on first use.
func NewBoard() *Board {
	return &Board{GPIOPins: map[string]*GPIOPin{}}
}

// GPIOPinByName returns the named fake pin, creating it if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p, nil
}

// Close implements board.Board.
func (b *Board) Close(ctx context.Context) error {
	return nil
}

// A GPIOPin reads back the last set value and counts rising edges, so
// tests can verify how many step pulses were emitted on a line.
type GPIOPin struct {
	mu     sync.Mutex
	high   bool
	rising int
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if high && !gp.high {
		gp.rising++
	}
	gp.high = high
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// RisingEdges reports how many low-to-high transitions Set has made.
func (gp *GPIOPin) RisingEdges() int {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.rising
}

// A DigitalInput is a settable binary input, standing in for a home
// switch or a radar presence line.
type DigitalInput struct {
	mu        sync.Mutex
	triggered bool
}

// Value reports whether the input is triggered.
func (d *DigitalInput) Value(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.triggered, nil
}

// Trigger sets the input state.
func (d *DigitalInput) Trigger(triggered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggered = triggered
}
