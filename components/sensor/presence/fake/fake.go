// Package fake implements a scriptable presence source for tests.
package fake

import (
	"context"
	"sync"
)

// A Source reports whatever distance it was last told to.
type Source struct {
	mu         sync.Mutex
	distanceMm float64
	err        error
}

// NewSource returns a source reading the given distance.
func NewSource(distanceMm float64) *Source {
	return &Source{distanceMm: distanceMm}
}

// DistanceMm implements presence.Source.
func (s *Source) DistanceMm(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.distanceMm, nil
}

// SetDistance scripts the next readings.
func (s *Source) SetDistance(distanceMm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distanceMm = distanceMm
	s.err = nil
}

// SetError makes subsequent reads fail until SetDistance is called.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
