package arbiter

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/vehicle"
)

func newTestArbiter() *Arbiter {
	return New(vehicle.ContextSimulated, zerolog.Nop())
}

func TestStartsIdle(t *testing.T) {
	a := newTestArbiter()
	m := a.Mode()
	assert.Equal(t, vehicle.PhaseIdle, m.Phase)
	assert.Equal(t, vehicle.ContextSimulated, m.Context)
	assert.False(t, m.Safe)
}

func TestTargetTakesEffectAtCycleBoundary(t *testing.T) {
	a := newTestArbiter()

	require.Equal(t, vehicle.FaultNone, a.SubmitTarget(vehicle.Target{X: 5, Y: 1}))
	// not yet applied
	assert.Equal(t, vehicle.PhaseIdle, a.Mode().Phase)

	mode, tr := a.Apply(false, vehicle.FaultNone)
	assert.Equal(t, vehicle.PhasePathFollowing, mode.Phase)
	require.NotNil(t, tr)
	require.NotNil(t, tr.Target)
	assert.Equal(t, 5.0, tr.Target.X)
	assert.False(t, tr.HoldHere)
}

func TestHoldTargetSelectsStationKeeping(t *testing.T) {
	a := newTestArbiter()
	a.SubmitTarget(vehicle.Target{X: 1, Y: 1, Hold: true})

	mode, tr := a.Apply(false, vehicle.FaultNone)
	assert.Equal(t, vehicle.PhaseStationKeeping, mode.Phase)
	require.NotNil(t, tr)
	require.NotNil(t, tr.Target)
	assert.True(t, tr.Target.Hold)
}

func TestReachedPromotesToStationKeeping(t *testing.T) {
	a := newTestArbiter()
	a.SubmitTarget(vehicle.Target{X: 5})
	a.Apply(false, vehicle.FaultNone)

	// completion mid-transit
	mode, tr := a.Apply(true, vehicle.FaultNone)
	assert.Equal(t, vehicle.PhaseStationKeeping, mode.Phase)
	require.NotNil(t, tr)
	assert.True(t, tr.HoldHere)

	// reached while already station-keeping changes nothing
	mode, tr = a.Apply(true, vehicle.FaultNone)
	assert.Equal(t, vehicle.PhaseStationKeeping, mode.Phase)
	assert.Nil(t, tr)
}

func TestDropoutLatchesSafeState(t *testing.T) {
	a := newTestArbiter()
	a.SubmitTarget(vehicle.Target{X: 5})
	a.Apply(false, vehicle.FaultNone)

	mode, tr := a.Apply(false, vehicle.FaultSensorDropout)
	assert.True(t, mode.Safe)
	require.NotNil(t, tr)
	assert.True(t, tr.HoldHere)

	// stays latched while the fault persists, no repeated transition
	mode, tr = a.Apply(false, vehicle.FaultSensorDropout)
	assert.True(t, mode.Safe)
	assert.Nil(t, tr)
}

func TestSafeStateRejectsTargets(t *testing.T) {
	a := newTestArbiter()
	a.Apply(false, vehicle.FaultNumeric)
	require.True(t, a.Mode().Safe)

	f := a.SubmitTarget(vehicle.Target{X: 1})
	assert.Equal(t, vehicle.FaultTransitionRejected, f)
	assert.Equal(t, uint64(1), a.Rejected())
	assert.Equal(t, vehicle.FaultTransitionRejected, a.LastFault())

	// the rejected target must not fire once the fault clears
	mode, tr := a.Apply(false, vehicle.FaultNone)
	assert.False(t, mode.Safe)
	require.NotNil(t, tr)
	assert.True(t, tr.HoldHere)
	assert.Nil(t, tr.Target)
}

func TestFaultClearedHoldsPosition(t *testing.T) {
	a := newTestArbiter()
	a.Apply(false, vehicle.FaultSensorDropout)

	mode, tr := a.Apply(false, vehicle.FaultNone)
	assert.False(t, mode.Safe)
	assert.Equal(t, vehicle.PhaseStationKeeping, mode.Phase)
	require.NotNil(t, tr)
	assert.True(t, tr.HoldHere)
}

func TestStaleDoesNotForceTransition(t *testing.T) {
	a := newTestArbiter()
	a.SubmitTarget(vehicle.Target{X: 5})
	a.Apply(false, vehicle.FaultNone)

	mode, tr := a.Apply(false, vehicle.FaultSensorStale)
	assert.False(t, mode.Safe)
	assert.Equal(t, vehicle.PhasePathFollowing, mode.Phase)
	assert.Nil(t, tr)
	assert.Equal(t, vehicle.FaultSensorStale, a.LastFault())
}

func TestOperatorSafeLatch(t *testing.T) {
	a := newTestArbiter()
	a.SetSafe(true)

	mode, tr := a.Apply(false, vehicle.FaultNone)
	assert.True(t, mode.Safe)
	require.NotNil(t, tr)
	assert.True(t, tr.HoldHere)

	// a clean fault state does not clear the operator latch
	mode, _ = a.Apply(false, vehicle.FaultNone)
	assert.True(t, mode.Safe)

	a.SetSafe(false)
	mode, _ = a.Apply(false, vehicle.FaultNone)
	assert.False(t, mode.Safe)
}
