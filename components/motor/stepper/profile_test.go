package stepper

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestPlanMoveFullTrapezoid(t *testing.T) {
	// 100 steps/s at 100 steps/s² needs 50 steps to get up and 50 to get
	// back down, leaving 900 at cruise.
	p, err := PlanMove(1000, 100, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Len(), test.ShouldEqual, 1000)
	test.That(t, p.Peak(), test.ShouldEqual, 100.0)
	test.That(t, p.accelSteps, test.ShouldEqual, 50)
	test.That(t, p.cruiseSteps, test.ShouldEqual, 900)
	test.That(t, p.decelSteps, test.ShouldEqual, 50)

	// Cruise delay is 1/peak.
	test.That(t, p.Delay(500), test.ShouldEqual, 10*time.Millisecond)
}

func TestPlanMoveSingleHump(t *testing.T) {
	p, err := PlanMove(1000, 100, 100, 100)
	test.That(t, err, test.ShouldBeNil)

	// Speed rises through acceleration, holds at cruise, falls through
	// deceleration; exactly one hump, never above peak, never below the
	// stall floor.
	for i := 1; i < p.accelSteps; i++ {
		test.That(t, p.speedAt(i), test.ShouldBeGreaterThanOrEqualTo, p.speedAt(i-1))
	}
	for i := p.accelSteps; i < p.accelSteps+p.cruiseSteps; i++ {
		test.That(t, p.speedAt(i), test.ShouldEqual, p.peak)
	}
	for i := p.accelSteps + p.cruiseSteps + 1; i < p.steps; i++ {
		test.That(t, p.speedAt(i), test.ShouldBeLessThanOrEqualTo, p.speedAt(i-1))
	}
	for i := 0; i < p.steps; i++ {
		v := p.speedAt(i)
		test.That(t, v, test.ShouldBeLessThanOrEqualTo, p.peak)
		test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, minStepRate)
	}
}

func TestPlanMoveShortMove(t *testing.T) {
	// 100 steps can't reach 10000 steps/s; the ramps get rescaled and the
	// peak is what the shortened acceleration actually attains.
	p, err := PlanMove(100, 10000, 10000, 10000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.accelSteps, test.ShouldEqual, 50)
	test.That(t, p.decelSteps, test.ShouldEqual, 50)
	test.That(t, p.cruiseSteps, test.ShouldEqual, 0)
	test.That(t, p.Peak(), test.ShouldAlmostEqual, math.Sqrt(2*10000*50))
}

func TestPlanMoveAsymmetricRamps(t *testing.T) {
	// Slower deceleration gets the larger share of a short move.
	p, err := PlanMove(300, 10000, 20000, 10000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.accelSteps+p.decelSteps, test.ShouldEqual, 300)
	test.That(t, p.decelSteps, test.ShouldBeGreaterThan, p.accelSteps)
}

func TestPlanMoveMinSpeedClamp(t *testing.T) {
	// A crawl below the stall floor gets clamped up to it.
	p, err := PlanMove(10, 10, 10, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Peak(), test.ShouldEqual, minStepRate)
	for i := 0; i < p.Len(); i++ {
		test.That(t, p.Delay(i), test.ShouldEqual, delayFor(minStepRate))
	}
}

func TestPlanMoveZeroSteps(t *testing.T) {
	p, err := PlanMove(0, 100, 100, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Len(), test.ShouldEqual, 0)
}

func TestPlanMoveBadParams(t *testing.T) {
	_, err := PlanMove(-1, 100, 100, 100)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = PlanMove(100, 0, 100, 100)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = PlanMove(100, 100, -5, 100)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = PlanMove(100, 100, 100, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanConstant(t *testing.T) {
	p, err := PlanConstant(500, 1000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Len(), test.ShouldEqual, 500)
	test.That(t, p.Peak(), test.ShouldEqual, 1000.0)
	for _, i := range []int{0, 250, 499} {
		test.That(t, p.Delay(i), test.ShouldEqual, time.Millisecond)
	}

	_, err = PlanConstant(10, 0)
	test.That(t, err, test.ShouldNotBeNil)
}
