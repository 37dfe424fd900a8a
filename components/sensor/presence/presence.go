// Package presence turns raw distance or detection readings into a
// smoothed, debounced "human present" decision, published through an
// atomic cell so the drawer controller can always act on the most recent
// completed sample without sharing any other state with the sampling
// goroutine.
package presence

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"
)

// A Source reports the distance to the nearest target in millimeters.
type Source interface {
	DistanceMm(ctx context.Context) (float64, error)
}

// A FlagSource reports presence directly, e.g. a radar's OUT pin.
type FlagSource interface {
	Present(ctx context.Context) (bool, error)
}

// A Sample is one completed presence decision. It has no life beyond the
// decision cycle that reads it; the detector always overwrites it whole.
type Sample struct {
	DistanceMm float64
	Present    bool
	At         time.Time
}

// Config parameterizes a detector.
type Config struct {
	// ThresholdMm is the detection threshold: closer than this is "present".
	ThresholdMm float64 `json:"d_threshold"`

	// SmoothingWindow is the rolling-average length, 1 (raw readings)
	// to 10. Default 3, enough to reject single-reading spikes.
	SmoothingWindow int `json:"smoothing_window,omitempty"`

	PollIntervalMs int `json:"sensor_poll_ms,omitempty"`    // default 100
	TimeoutMs      int `json:"sensor_timeout_ms,omitempty"` // default 1000
}

const (
	defaultWindow       = 3
	maxWindow           = 10
	defaultPollInterval = 100 * time.Millisecond
	defaultReadTimeout  = time.Second
)

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ThresholdMm <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "d_threshold")
	}
	if cfg.SmoothingWindow < 0 || cfg.SmoothingWindow > maxWindow {
		return utils.NewConfigValidationError(path,
			errors.Errorf("smoothing_window must be 1-%d, got %d", maxWindow, cfg.SmoothingWindow))
	}
	if cfg.PollIntervalMs < 0 || cfg.TimeoutMs < 0 {
		return utils.NewConfigValidationError(path,
			errors.New("sensor_poll_ms and sensor_timeout_ms must be non-negative"))
	}
	return nil
}

func (cfg *Config) window() int {
	if cfg.SmoothingWindow == 0 {
		return defaultWindow
	}
	return cfg.SmoothingWindow
}

func (cfg *Config) pollInterval() time.Duration {
	if cfg.PollIntervalMs == 0 {
		return defaultPollInterval
	}
	return time.Duration(cfg.PollIntervalMs) * time.Millisecond
}

func (cfg *Config) readTimeout() time.Duration {
	if cfg.TimeoutMs == 0 {
		return defaultReadTimeout
	}
	return time.Duration(cfg.TimeoutMs) * time.Millisecond
}

// A Detector polls a source on its own goroutine and publishes the
// latest decision. A read that times out or errors holds the previous
// decision rather than oscillating on missing data.
type Detector struct {
	logger    golog.Logger
	clk       clock.Clock
	read      func(ctx context.Context) (float64, error)
	threshold float64
	interval  time.Duration
	timeout   time.Duration

	// Ring buffer for smoothing; touched only by the poll goroutine.
	ring  []float64
	idx   int
	count int

	misses int
	latest atomic.Pointer[Sample]

	workers *utils.StoppableWorkers
}

// NewDetector builds a detector over a distance source and starts polling.
func NewDetector(cfg Config, src Source, logger golog.Logger) (*Detector, error) {
	return newDetector(cfg, src.DistanceMm, logger)
}

// NewFlagDetector builds a detector over a boolean source. The flag is
// mapped onto synthetic distances (0 when present, past-threshold when
// not) so smoothing behaves as a majority vote.
func NewFlagDetector(cfg Config, src FlagSource, logger golog.Logger) (*Detector, error) {
	farMm := cfg.ThresholdMm * 2
	return newDetector(cfg, func(ctx context.Context) (float64, error) {
		present, err := src.Present(ctx)
		if err != nil {
			return 0, err
		}
		if present {
			return 0, nil
		}
		return farMm, nil
	}, logger)
}

func newDetector(cfg Config, read func(ctx context.Context) (float64, error), logger golog.Logger) (*Detector, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	d := &Detector{
		logger:    logger,
		clk:       clock.New(),
		read:      read,
		threshold: cfg.ThresholdMm,
		interval:  cfg.pollInterval(),
		timeout:   cfg.readTimeout(),
		ring:      make([]float64, cfg.window()),
	}
	d.workers = utils.NewBackgroundStoppableWorkers(d.pollLoop)
	return d, nil
}

func (d *Detector) pollLoop(ctx context.Context) {
	for {
		d.pollOnce(ctx)
		if !utils.SelectContextOrWait(ctx, d.interval) {
			return
		}
	}
}

func (d *Detector) pollOnce(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, d.timeout)
	dist, err := d.read(readCtx)
	cancel()
	if err != nil {
		// No data this cycle: hold the last decision.
		d.misses++
		d.logger.Debugw("presence read failed, holding last decision",
			"consecutive", d.misses, "error", err)
		return
	}
	if d.misses > 0 {
		d.logger.Debugw("presence readings recovered", "missed", d.misses)
		d.misses = 0
	}

	d.ring[d.idx] = dist
	d.idx = (d.idx + 1) % len(d.ring)
	if d.count < len(d.ring) {
		d.count++
	}

	var sum float64
	for i := 0; i < d.count; i++ {
		sum += d.ring[i]
	}
	avg := sum / float64(d.count)

	d.latest.Store(&Sample{
		DistanceMm: avg,
		Present:    avg < d.threshold,
		At:         d.clk.Now(),
	})
}

// Latest returns the most recent completed decision. ok is false until
// the first successful read.
func (d *Detector) Latest() (Sample, bool) {
	s := d.latest.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}

// Close stops the polling goroutine.
func (d *Detector) Close() {
	d.workers.Stop()
}

type minSource []Source

// Merge combines redundant distance sensors by taking the closest
// reading. A sensor that errors is skipped; Merge errors only when every
// sensor failed.
func Merge(srcs ...Source) Source {
	return minSource(srcs)
}

func (m minSource) DistanceMm(ctx context.Context) (float64, error) {
	best := 0.0
	got := false
	var lastErr error
	for _, src := range m {
		d, err := src.DistanceMm(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if !got || d < best {
			best = d
			got = true
		}
	}
	if !got {
		if lastErr == nil {
			lastErr = errors.New("no sensors configured")
		}
		return 0, errors.Wrap(lastErr, "all presence sensors failed")
	}
	return best, nil
}
