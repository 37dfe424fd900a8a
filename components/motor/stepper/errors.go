package stepper

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	errNegativeTiming = errors.New("pulse width and direction setup delays must be non-negative")

	// ErrNotEnabled is returned when a move is requested on a disabled axis.
	ErrNotEnabled = errors.New("axis is not enabled")

	// ErrOverwriteWhileMoving is returned when OverwritePosition is called
	// during a move.
	ErrOverwriteWhileMoving = errors.New("cannot overwrite position while a move is running")
)

// HomingTimeoutError is returned when the home switch never triggered
// within the configured bound. The axis is stopped; position is unchanged
// and still reflects every pulse emitted.
type HomingTimeoutError struct {
	Timeout time.Duration
}

func (e *HomingTimeoutError) Error() string {
	return fmt.Sprintf("home switch did not trigger within %v", e.Timeout)
}

// IsHomingTimeoutError reports whether err is a HomingTimeoutError.
func IsHomingTimeoutError(err error) bool {
	var hte *HomingTimeoutError
	return errors.As(err, &hte)
}
