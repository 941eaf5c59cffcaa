package guidance

import (
	"math"

	"gca-engine/vehicle"
)

// los is the line-of-sight path-following law. The path is the straight
// segment from the previous waypoint to the next one; the desired heading
// is the path-tangential angle plus the velocity-path relative angle
// derived from the cross-track error and the look-ahead distance.
type los struct {
	// segment endpoints in the odometry frame
	xk, yk     float64 // previous waypoint
	xkp1, ykp1 float64 // next waypoint

	delta  float64 // look-ahead distance
	accept float64 // sphere of acceptance radius
	speed  float64 // transit speed reference
	depth  float64 // depth-hold reference z_d
}

// setSegment anchors the path at the vehicle's position when the target is
// accepted, pointing at the new waypoint. The along-track parameterization
// is monotonic by construction: the segment never changes until the next
// target, so the look-ahead point cannot move backward.
func (l *los) setSegment(fromX, fromY float64, t vehicle.Target, defaultAccept, defaultSpeed float64) {
	l.xk = fromX
	l.yk = fromY
	l.xkp1 = t.X
	l.ykp1 = t.Y
	l.depth = t.Depth
	l.accept = t.AcceptRadius
	if l.accept <= 0 {
		l.accept = defaultAccept
	}
	l.speed = t.Speed
	if l.speed <= 0 {
		l.speed = defaultSpeed
	}
}

// distance is the straight-line 2D distance from (x, y) to the target.
func (l *los) distance(x, y float64) float64 {
	return math.Hypot(l.xkp1-x, l.ykp1-y)
}

func (l *los) withinAcceptance(x, y float64) bool {
	return l.distance(x, y) < l.accept
}

// steer computes the desired heading from the look-ahead geometry and
// returns it with the cross-track error.
func (l *los) steer(x, y float64) (float64, float64) {
	// path-tangential angle
	alpha := math.Atan2(l.ykp1-l.yk, l.xkp1-l.xk)

	// vehicle position in the path-fixed frame
	ca := math.Cos(alpha)
	sa := math.Sin(alpha)
	dx := x - l.xk
	dy := y - l.yk
	crossTrack := -sa*dx + ca*dy

	// velocity-path relative angle from the look-ahead distance
	chiR := math.Atan(-crossTrack / l.delta)

	return vehicle.WrapPi(alpha + chiR), crossTrack
}
