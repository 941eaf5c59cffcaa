// Package control computes the body-frame wrench that drives the setpoint
// error to zero. Two laws mirror the guidance modes: the backstepping
// autopilot for path-following and a PID pose regulator for
// station-keeping. The controller never clamps to actuator limits; what is
// achievable is the allocator's concern.
package control

import (
	"math"
	"time"

	"gca-engine/config"
	"gca-engine/vehicle"
)

type Controller struct {
	auto backstepping

	pidX     *PIDRegulator
	pidY     *PIDRegulator
	pidYaw   *PIDRegulator
	pidDepth *PIDRegulator

	prevU     float64
	prevStamp time.Time
}

func New(g config.GainsConfig) *Controller {
	return &Controller{
		auto:     backstepping{g: g},
		pidX:     NewPIDRegulator(g.PosX),
		pidY:     NewPIDRegulator(g.PosY),
		pidYaw:   NewPIDRegulator(g.Heading),
		pidDepth: NewPIDRegulator(g.Depth),
	}
}

// Reset clears all regulator state. The engine calls this when the arbiter
// switches laws so transitions cannot inherit stale integrals.
func (c *Controller) Reset() {
	c.pidX.Reset()
	c.pidY.Reset()
	c.pidYaw.Reset()
	c.pidDepth.Reset()
	c.prevStamp = time.Time{}
}

// Update computes the wrench for one cycle. A non-finite result is a
// NUMERIC_FAULT: the zero wrench is returned and the fault surfaced; the
// engine holds the previous thruster command for the cycle.
func (c *Controller) Update(mode vehicle.Mode, sp vehicle.Setpoint, st vehicle.VehicleState, now time.Time) (vehicle.Wrench, vehicle.Fault) {
	if mode.Safe || mode.Phase == vehicle.PhaseIdle {
		return vehicle.Wrench{}, vehicle.FaultNone
	}

	var w vehicle.Wrench
	switch mode.Phase {
	case vehicle.PhasePathFollowing:
		w = c.pathFollow(sp, st, now)
	case vehicle.PhaseStationKeeping:
		w = c.stationKeep(sp, st, now)
	}

	if !w.Finite() {
		return vehicle.Wrench{}, vehicle.FaultNumeric
	}
	return w, vehicle.FaultNone
}

func (c *Controller) pathFollow(sp vehicle.Setpoint, st vehicle.VehicleState, now time.Time) vehicle.Wrench {
	tauX, tauY, tauN := c.auto.controlLaw(
		st.Vel[0],
		sp.Surge, sp.SurgeRate,
		st.Vel[1],
		st.Yaw, sp.Yaw,
		st.AngVel[2], sp.YawRate, sp.YawAccel,
	)

	// transit thrust is forward-only; braking is left to drag
	if tauX < 0 {
		tauX = 0
	}

	t := seconds(now)
	tauZ := c.pidDepth.Regulate(sp.Pos[2]-st.Pos[2], t)

	return vehicle.Wrench{tauX, tauY, tauZ, 0, 0, tauN}
}

func (c *Controller) stationKeep(sp vehicle.Setpoint, st vehicle.VehicleState, now time.Time) vehicle.Wrench {
	t := seconds(now)

	// position error rotated into the body frame so each regulator drives
	// a body axis directly
	ex := sp.Pos[0] - st.Pos[0]
	ey := sp.Pos[1] - st.Pos[1]
	cy := math.Cos(st.Yaw)
	sy := math.Sin(st.Yaw)
	exBody := cy*ex + sy*ey
	eyBody := -sy*ex + cy*ey

	tauX := c.pidX.Regulate(exBody, t)
	tauY := c.pidY.Regulate(eyBody, t)
	tauZ := c.pidDepth.Regulate(sp.Pos[2]-st.Pos[2], t)
	tauN := c.pidYaw.Regulate(vehicle.WrapPi(sp.Yaw-st.Yaw), t)

	return vehicle.Wrench{tauX, tauY, tauZ, 0, 0, tauN}
}

func seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
