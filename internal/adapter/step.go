package adapter

import (
	"math"
	"time"

	"github.com/OCAP2/physbridge/internal/channel"
	"github.com/OCAP2/physbridge/internal/protocol"
)

// stepSize picks the duration of one Simulate. Without an explicit value
// it waits until more than a fixed step of wall time, counting the cost
// of the previous step, has passed. The first step is exactly one fixed
// step. Explicit values below the fixed step are raised to it. Without
// rate limiting the adapter never waits.
func (a *Adapter) stepSize(requested float64) float64 {
	fixed := a.fixedTimeStep
	if requested > 0 {
		return math.Max(requested, fixed)
	}
	if a.lastStep.IsZero() {
		return fixed
	}

	cost := time.Duration(a.lastDuration.Load()).Seconds()
	elapsed := a.clock.Now().Sub(a.lastStep).Seconds()
	if !a.rateLimit {
		return math.Max(elapsed, fixed)
	}
	for elapsed+cost <= fixed {
		wait := fixed - cost - elapsed
		a.clock.Sleep(time.Duration(wait*float64(time.Second)) + time.Microsecond)
		elapsed = a.clock.Now().Sub(a.lastStep).Seconds()
	}
	return elapsed
}

func subSteps(timeStep, fixed float64, requested int) int {
	if requested > 0 {
		return requested
	}
	return int(math.Ceil(timeStep / fixed))
}

func (a *Adapter) simulate(c protocol.Simulate, out channel.Sender[protocol.Message]) {
	timeStep := a.stepSize(c.TimeStep)
	maxSubSteps := subSteps(timeStep, a.fixedTimeStep, c.MaxSubSteps)

	start := a.clock.Now()
	taken := a.world.StepSimulation(timeStep, maxSubSteps, a.fixedTimeStep)
	elapsed := a.clock.Now().Sub(start)

	// Observers read these when the world report arrives.
	a.lastDuration.Store(int64(elapsed))
	a.lastSubSteps.Store(int64(taken))
	a.steps.Inc()

	a.publish(out)
	end := a.clock.Now()
	a.lastStep = end
	a.metrics.step(end.Sub(start), taken)

	a.logger.Debug("simulated",
		"timeStep", timeStep,
		"maxSubSteps", maxSubSteps,
		"subSteps", taken,
		"bodies", a.bodies.Len(),
		"duration", elapsed)
}
