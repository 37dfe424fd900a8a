package presence

import (
	"context"

	"github.com/man0n0n0/TOF-drawer/components/board"
)

type inputFlagSource struct {
	in board.DigitalInput
}

// FromInput adapts a digital input (e.g. an LD2410 radar's OUT pin,
// wired active-high) into a FlagSource.
func FromInput(in board.DigitalInput) FlagSource {
	return &inputFlagSource{in: in}
}

func (s *inputFlagSource) Present(ctx context.Context) (bool, error) {
	return s.in.Value(ctx)
}
