package guidance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/config"
	"gca-engine/vehicle"
)

func testLOS() config.LOSConfig {
	return config.LOSConfig{
		LookAhead:    0.7,
		AcceptRadius: 0.5,
		DefaultSpeed: 0.4,
		RefOmega:     1.0,
		RefZeta:      1.0,
	}
}

func stateAt(x, y, yaw float64) vehicle.VehicleState {
	return vehicle.VehicleState{Pos: [3]float64{x, y, 0}, Yaw: yaw}
}

func TestPathFollowSteersTowardTarget(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(0, 0, 0)
	g.SetTarget(vehicle.Target{X: 10, Y: 0, Depth: 1.5}, st)

	now := time.Now()
	var sp vehicle.Setpoint
	for i := 0; i < 100; i++ {
		now = now.Add(50 * time.Millisecond)
		sp = g.Update(vehicle.PhasePathFollowing, st, now)
	}

	// target straight ahead on +x: heading converges to zero, surge ramps
	// to the default transit speed
	assert.InDelta(t, 0.0, sp.Yaw, 0.02)
	assert.InDelta(t, 0.4, sp.Surge, 0.02)
	assert.InDelta(t, 10.0, sp.DistanceToGoal, 0.01)
	assert.Equal(t, 1.5, sp.Pos[2])
	assert.False(t, sp.Reached)
}

func TestPathFollowCorrectsCrossTrack(t *testing.T) {
	g := New(testLOS(), 20)
	start := stateAt(0, 0, 0)
	g.SetTarget(vehicle.Target{X: 10, Y: 0}, start)

	// vehicle displaced to port of the path (negative y): the LOS law must
	// steer right (positive heading is toward +y in NED)
	off := stateAt(2, -1, 0)
	now := time.Now()
	var sp vehicle.Setpoint
	for i := 0; i < 100; i++ {
		now = now.Add(50 * time.Millisecond)
		sp = g.Update(vehicle.PhasePathFollowing, off, now)
	}
	assert.Greater(t, sp.Yaw, 0.3)
	assert.InDelta(t, -1.0, g.CrossTrack(off), 1e-9)
}

func TestPathFollowReachedInsideAcceptance(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(0, 0, 0)
	g.SetTarget(vehicle.Target{X: 3, Y: 0}, st)

	now := time.Now()
	sp := g.Update(vehicle.PhasePathFollowing, stateAt(2.6, 0.1, 0), now)
	assert.True(t, sp.Reached)

	sp = g.Update(vehicle.PhasePathFollowing, stateAt(2.0, 0, 0), now.Add(50*time.Millisecond))
	assert.False(t, sp.Reached)
}

func TestCustomAcceptanceRadius(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(0, 0, 0)
	g.SetTarget(vehicle.Target{X: 5, Y: 0, AcceptRadius: 2.0}, st)

	sp := g.Update(vehicle.PhasePathFollowing, stateAt(3.5, 0, 0), time.Now())
	assert.True(t, sp.Reached)
}

func TestHoldNeverReportsReached(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(1, 2, 0.5)
	g.SetTarget(vehicle.Target{X: 1, Y: 2, Depth: 3, Yaw: 0.5, Hold: true}, st)

	sp := g.Update(vehicle.PhaseStationKeeping, st, time.Now())
	assert.Equal(t, [3]float64{1, 2, 3}, sp.Pos)
	assert.Equal(t, 0.5, sp.Yaw)
	assert.Zero(t, sp.Surge)
	assert.False(t, sp.Reached)

	// even sitting exactly on the pose
	sp = g.Update(vehicle.PhaseStationKeeping, stateAt(1, 2, 0.5), time.Now())
	assert.False(t, sp.Reached)
}

func TestHoldHereKeepsTransitDepth(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(0, 0, 0)
	g.SetTarget(vehicle.Target{X: 10, Y: 0, Depth: 2.5}, st)

	arrived := vehicle.VehicleState{Pos: [3]float64{9.8, 0.1, 2.4}, Yaw: 0.05}
	g.HoldHere(arrived)

	sp := g.Update(vehicle.PhaseStationKeeping, arrived, time.Now())
	assert.Equal(t, 9.8, sp.Pos[0])
	assert.Equal(t, 2.5, sp.Pos[2], "hold keeps the depth reference, not the noisy estimate")
	assert.Equal(t, 0.05, sp.Yaw)
}

func TestIdleSetpointIsPassive(t *testing.T) {
	g := New(testLOS(), 20)
	st := stateAt(4, 5, 1.0)

	sp := g.Update(vehicle.PhaseIdle, st, time.Now())
	assert.Equal(t, st.Pos, sp.Pos)
	assert.Equal(t, st.Yaw, sp.Yaw)
	assert.Zero(t, sp.Surge)
}

func TestHeadingWrapDoesNotSwingLongWay(t *testing.T) {
	g := New(testLOS(), 20)
	// vehicle pointing just below -pi with the LOS heading just above +pi:
	// the raw error spans the cut and the naive filtered heading would
	// swing the long way through zero
	st := stateAt(0, 0, -3.1)
	g.SetTarget(vehicle.Target{X: -10, Y: 0.5}, st)

	now := time.Now()
	for i := 0; i < 50; i++ {
		now = now.Add(50 * time.Millisecond)
		sp := g.Update(vehicle.PhasePathFollowing, st, now)
		d := math.Abs(vehicle.WrapPi(sp.Yaw - st.Yaw))
		require.Less(t, d, math.Pi/2, "cycle %d: setpoint jumped across the wrap", i)
	}
}

func TestReferenceModelSmoothsStep(t *testing.T) {
	f := newSecondOrder(1.0, 1.0, 0.05)
	f.Reset(0, 0)

	for i := 0; i < 400; i++ {
		_, v, _ := f.Step(1.0)
		// critically damped from rest: the derivative never changes sign
		require.GreaterOrEqual(t, v, -1e-9, "step %d", i)
	}
	x, v, _ := f.Step(1.0)
	assert.InDelta(t, 1.0, x, 1e-3)
	assert.InDelta(t, 0.0, v, 1e-3)
}
