package vehicle

import "math"

// WrapPi wraps an angle into (-pi, pi]. Heading errors must be wrapped
// before they are fed to any regulator; the arctangent discontinuity at
// +-pi otherwise produces a full-turn correction.
func WrapPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// ToQuaternion converts roll, pitch, yaw (ZYX convention) into the
// w, x, y, z components of the rotation quaternion.
func ToQuaternion(roll, pitch, yaw float64) (float64, float64, float64, float64) {
	cr := math.Cos(roll / 2)
	sr := math.Sin(roll / 2)
	cp := math.Cos(pitch / 2)
	sp := math.Sin(pitch / 2)
	cy := math.Cos(yaw / 2)
	sy := math.Sin(yaw / 2)

	w := cr*cp*cy + sr*sp*sy
	x := sr*cp*cy - cr*sp*sy
	y := cr*sp*cy + sr*cp*sy
	z := cr*cp*sy - sr*sp*cy
	return w, x, y, z
}

// FromQuaternion converts a rotation quaternion back to roll, pitch, yaw.
// Pitch is clamped at the gimbal singularity.
func FromQuaternion(w, x, y, z float64) (float64, float64, float64) {
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	s := 2 * (w*y - z*x)
	var pitch float64
	if s >= 1 {
		pitch = math.Pi / 2
	} else if s <= -1 {
		pitch = -math.Pi / 2
	} else {
		pitch = math.Asin(s)
	}

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}
