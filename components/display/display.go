// Package display is the fire-and-forget status surface the drawer
// controller writes to. Implementations must never block motion timing;
// the stock ones log or drop.
package display

import (
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/edaniels/golog"
)

// A Display shows a short status message, replacing the previous one.
type Display interface {
	Show(lines ...string)
}

type logDisplay struct {
	logger golog.Logger
}

// NewLogDisplay returns a display that writes status lines to the log.
func NewLogDisplay(logger golog.Logger) Display {
	return &logDisplay{logger: logger}
}

func (d *logDisplay) Show(lines ...string) {
	d.logger.Infow("status", "text", strings.Join(lines, " / "))
}

type debounced struct {
	mu       sync.Mutex
	inner    Display
	debounce func(func())
}

// Debounced wraps a display so that bursts of updates coalesce into the
// last one after interval; a controller re-evaluating every poll tick
// can Show freely without flooding a slow panel.
func Debounced(inner Display, interval time.Duration) Display {
	return &debounced{inner: inner, debounce: debounce.New(interval)}
}

func (d *debounced) Show(lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debounce(func() { d.inner.Show(lines...) })
}

// A Recorder keeps every message for tests.
type Recorder struct {
	mu       sync.Mutex
	messages [][]string
}

// Show implements Display.
func (r *Recorder) Show(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, lines)
}

// Messages returns everything shown so far.
func (r *Recorder) Messages() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.messages))
	copy(out, r.messages)
	return out
}
