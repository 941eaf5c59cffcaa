package vehicle

import (
	"math"
	"time"
)

// VehicleState is the fused pose/velocity estimate for one estimator cycle.
// Position and orientation are in the NED odometry frame, velocities in the
// body frame (u surge, v sway, w heave; p, q, r angular rates).
//
// A state is an immutable snapshot: the estimator publishes a fresh value
// every cycle and consumers never mutate it.
type VehicleState struct {
	Stamp time.Time

	Pos              [3]float64 // x north, y east, z down (depth)
	Roll, Pitch, Yaw float64

	Vel    [3]float64 // body u, v, w
	AngVel [3]float64 // body p, q, r

	// Stale is set when the estimate is propagated by prediction only
	// because no measurement arrived within the staleness threshold.
	Stale bool

	// PosVar is the trace of the position covariance block, used by
	// consumers to judge estimate quality without carrying the full matrix.
	PosVar float64
}

// Setpoint is the guidance output consumed by the controller. It is always
// expressed in the same frames as VehicleState.
type Setpoint struct {
	Stamp time.Time

	Pos [3]float64
	Yaw float64

	Surge     float64 // desired forward speed u_d
	SurgeRate float64 // feedforward u̇_d
	YawRate   float64 // desired r_d
	YawAccel  float64 // feedforward ṙ_d

	// DistanceToGoal is guidance feedback: straight-line distance to the
	// active target, surfaced on the operator status every cycle.
	DistanceToGoal float64

	// Reached reports that the target is inside the sphere of acceptance.
	// Guidance only reports; the arbiter decides what to do with it.
	Reached bool
}

// Wrench is a generalized force/torque in the body frame:
// [X Y Z] forces followed by [K M N] moments.
type Wrench [6]float64

// Finite reports whether every component is a usable number. A non-finite
// wrench is a fatal fault for the cycle, never silently clamped.
func (w Wrench) Finite() bool {
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ThrusterCommand is the per-thruster force vector produced by the
// allocator, ordered to match the thruster configuration.
type ThrusterCommand struct {
	Stamp  time.Time
	Forces []float64 // newtons, one entry per thruster
	Status AllocStatus
}

// AllocStatus qualifies an allocation result.
type AllocStatus int

const (
	AllocOK AllocStatus = iota
	// AllocPartial means the command is the best bounded approximation of an
	// infeasible wrench after the redistribution iterations were exhausted.
	AllocPartial
)

func (s AllocStatus) String() string {
	if s == AllocPartial {
		return "PARTIAL_ALLOCATION"
	}
	return "OK"
}

// Target is an operator navigation goal: either the next waypoint of a path
// (path-following) or a fixed pose to hold (station-keeping).
type Target struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Depth is the depth-hold reference z_d, held by both guidance laws.
	Depth float64 `json:"depth"`
	// Speed is the desired transit speed for path-following.
	Speed float64 `json:"speed"`
	// AcceptRadius is the sphere of acceptance; zero selects the default.
	AcceptRadius float64 `json:"accept_radius"`
	// Hold requests station-keeping at the pose instead of transiting to it.
	Hold bool `json:"hold"`
	// Yaw is the desired heading when holding.
	Yaw float64 `json:"yaw"`
}
