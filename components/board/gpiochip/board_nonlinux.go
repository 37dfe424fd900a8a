//go:build !linux

package gpiochip

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

// A Board is unavailable off Linux; the GPIO character device is a Linux
// kernel interface.
type Board struct{}

// NewBoard returns a board whose pins always error.
func NewBoard(devicePath string, logger golog.Logger) *Board {
	logger.Warn("gpiochip boards are only supported on linux")
	return &Board{}
}

// GPIOPinByName implements board.Board.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return nil, errors.New("gpiochip boards are only supported on linux")
}

// Close implements board.Board.
func (b *Board) Close(ctx context.Context) error {
	return nil
}
