// Package guidance turns a navigation target and the current VehicleState
// into a Setpoint. Two laws are carried as a closed set selected by the
// mode phase: line-of-sight path following and station-keeping hold.
// Guidance only reports target completion; acting on it is the arbiter's
// job.
package guidance

import (
	"math"
	"time"

	"gca-engine/config"
	"gca-engine/vehicle"
)

type Guidance struct {
	cfg config.LOSConfig
	h   float64 // control period, seconds

	los *los
	ref *refModel

	// station-keeping hold pose
	holdPos [3]float64
	holdYaw float64

	haveTarget bool
}

func New(cfg config.LOSConfig, controlHz float64) *Guidance {
	h := 1.0 / controlHz
	return &Guidance{
		cfg: cfg,
		h:   h,
		los: &los{delta: cfg.LookAhead},
		ref: newRefModel(cfg.RefOmega, cfg.RefZeta, h),
	}
}

// SetTarget installs a new navigation goal. For path-following the segment
// is anchored at the vehicle's current position; for holds the pose is
// stored as-is. The reference model is re-seeded from the vehicle state so
// the setpoint picks up without a jump.
func (g *Guidance) SetTarget(t vehicle.Target, st vehicle.VehicleState) {
	if t.Hold {
		g.holdPos = [3]float64{t.X, t.Y, t.Depth}
		g.holdYaw = t.Yaw
	} else {
		g.los.setSegment(st.Pos[0], st.Pos[1], t, g.cfg.AcceptRadius, g.cfg.DefaultSpeed)
	}
	g.ref.Reset(st.Vel[0], st.Yaw)
	g.haveTarget = true
}

// HoldHere converts the current pose into a station-keeping target,
// used when path-following completes or a fault forces a hold.
func (g *Guidance) HoldHere(st vehicle.VehicleState) {
	g.holdPos = st.Pos
	// keep the depth-hold reference from the transit if one was active
	if g.haveTarget {
		g.holdPos[2] = g.los.depth
	}
	g.holdYaw = st.Yaw
}

// Update produces the Setpoint for one control cycle under the given phase.
func (g *Guidance) Update(phase vehicle.Phase, st vehicle.VehicleState, now time.Time) vehicle.Setpoint {
	switch phase {
	case vehicle.PhasePathFollowing:
		return g.pathFollow(st, now)
	case vehicle.PhaseStationKeeping:
		return g.hold(st, now)
	default:
		// idle: hold whatever pose we have, zero speed
		return vehicle.Setpoint{Stamp: now, Pos: st.Pos, Yaw: st.Yaw}
	}
}

func (g *Guidance) pathFollow(st vehicle.VehicleState, now time.Time) vehicle.Setpoint {
	psiRef, _ := g.los.steer(st.Pos[0], st.Pos[1])

	// The arctangent wraps at +-pi; when the wrapped error between the
	// vehicle heading and the reference crosses the cut, re-seed the
	// reference model on the unwrapped side so the filtered heading does
	// not swing the long way around.
	e := st.Yaw - psiRef
	if e < -math.Pi {
		psiRef -= 2 * math.Pi
	}
	if e > math.Pi {
		psiRef += 2 * math.Pi
	}

	ud, udDot, psiD, rd, rdDot := g.ref.Step(g.los.speed, psiRef)

	e = st.Yaw - psiD
	if e > math.Pi || e < -math.Pi {
		if e > math.Pi {
			psiD -= 2 * math.Pi
		} else {
			psiD += 2 * math.Pi
		}
		g.ref.Reset(st.Vel[0], st.Yaw)
		ud, udDot, psiD, rd, rdDot = g.ref.Step(g.los.speed, psiD)
	}

	dist := g.los.distance(st.Pos[0], st.Pos[1])
	return vehicle.Setpoint{
		Stamp:          now,
		Pos:            [3]float64{g.los.xkp1, g.los.ykp1, g.los.depth},
		Yaw:            vehicle.WrapPi(psiD),
		Surge:          ud,
		SurgeRate:      udDot,
		YawRate:        rd,
		YawAccel:       rdDot,
		DistanceToGoal: dist,
		Reached:        g.los.withinAcceptance(st.Pos[0], st.Pos[1]),
	}
}

func (g *Guidance) hold(st vehicle.VehicleState, now time.Time) vehicle.Setpoint {
	dist := math.Hypot(g.holdPos[0]-st.Pos[0], g.holdPos[1]-st.Pos[1])
	return vehicle.Setpoint{
		Stamp:          now,
		Pos:            g.holdPos,
		Yaw:            g.holdYaw,
		DistanceToGoal: dist,
		// a hold never completes; Reached stays false so the arbiter
		// cannot be tricked into a transition by a passing report
	}
}

// CrossTrack exposes the current cross-track error for status reporting.
func (g *Guidance) CrossTrack(st vehicle.VehicleState) float64 {
	_, e := g.los.steer(st.Pos[0], st.Pos[1])
	return e
}
