package stepper

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// minStepRate is the floor for any instantaneous profile speed, in
// steps/s. Below it the inter-step delay blows up and the motor stalls
// rather than turns.
const minStepRate = 50.0

// A Profile is the delay schedule for one move: accelerate, cruise,
// decelerate. It is computed at move start, consumed step by step, and
// discarded with the move. Delays are derived on demand; nothing is
// precomputed per step.
type Profile struct {
	steps       int
	accelSteps  int
	cruiseSteps int
	decelSteps  int
	accel       float64 // steps/s²
	decel       float64 // steps/s²
	peak        float64 // cruise speed actually reached, steps/s
}

// PlanMove computes a trapezoidal profile for the given unsigned step
// count. Direction is the axis's concern.
//
// When the move is too short for a full trapezoid the acceleration and
// deceleration phases are rescaled proportionally and the cruise delay
// uses the speed actually reached, sqrt(2·a·accelSteps), not maxSpeed.
func PlanMove(steps int, maxSpeed, accel, decel float64) (*Profile, error) {
	if steps < 0 {
		return nil, errors.Errorf("step count must be non-negative, got %d", steps)
	}
	if maxSpeed <= 0 || accel <= 0 || decel <= 0 {
		return nil, errors.Errorf(
			"speed, acceleration and deceleration must be positive, got %v, %v, %v",
			maxSpeed, accel, decel)
	}

	accelSteps := int(maxSpeed * maxSpeed / (2 * accel))
	decelSteps := int(maxSpeed * maxSpeed / (2 * decel))
	peak := maxSpeed

	if accelSteps+decelSteps > steps {
		// Split so both ramps meet at the same speed: the gentler ramp
		// needs the larger share of the distance.
		accelSteps = int(float64(steps) * decel / (accel + decel))
		decelSteps = steps - accelSteps
		peak = math.Sqrt(2 * accel * float64(accelSteps))
	}
	if peak < minStepRate {
		peak = minStepRate
	}

	return &Profile{
		steps:       steps,
		accelSteps:  accelSteps,
		cruiseSteps: steps - accelSteps - decelSteps,
		decelSteps:  decelSteps,
		accel:       accel,
		decel:       decel,
		peak:        peak,
	}, nil
}

// PlanConstant computes a constant-speed profile: the same schedule
// shape, with no acceleration or deceleration phase.
func PlanConstant(steps int, speed float64) (*Profile, error) {
	if steps < 0 {
		return nil, errors.Errorf("step count must be non-negative, got %d", steps)
	}
	if speed <= 0 {
		return nil, errors.Errorf("speed must be positive, got %v", speed)
	}
	return &Profile{steps: steps, cruiseSteps: steps, peak: speed}, nil
}

// Len returns the number of steps in the move.
func (p *Profile) Len() int {
	return p.steps
}

// Peak returns the cruise speed the profile reaches, in steps/s.
func (p *Profile) Peak() float64 {
	return p.peak
}

// Delay returns the pause to apply after emitting step i (0-based).
func (p *Profile) Delay(i int) time.Duration {
	return delayFor(p.speedAt(i))
}

func (p *Profile) speedAt(i int) float64 {
	var v float64
	switch {
	case i < p.accelSteps:
		// v = sqrt(2·a·d) with d the distance covered so far.
		v = math.Sqrt(2 * p.accel * float64(i+1))
	case i < p.accelSteps+p.cruiseSteps:
		v = p.peak
	default:
		remaining := p.steps - i
		v = math.Sqrt(2 * p.decel * float64(remaining))
	}
	if v > p.peak {
		v = p.peak
	}
	if v < minStepRate {
		v = minStepRate
	}
	return v
}

func delayFor(stepsPerSecond float64) time.Duration {
	return time.Duration(float64(time.Second) / stepsPerSecond)
}
