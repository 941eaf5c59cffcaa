package control

import (
	"math"

	"gca-engine/config"
)

// PIDRegulator is a 1D regulator with trapezoidal integral and output
// saturation. When the output saturates, the integral is reset: with the
// allocator clamping downstream, continuing to integrate would only wind
// the term up against a bound the plant cannot follow.
type PIDRegulator struct {
	p, i, d float64
	sat     float64

	integral float64
	prevErr  float64
	prevT    float64
	primed   bool
}

func NewPIDRegulator(g config.PIDGains) *PIDRegulator {
	return &PIDRegulator{p: g.P, i: g.I, d: g.D, sat: g.Sat}
}

// Reset clears the regulator state. Called on every mode transition so an
// old integral never leaks into the new law.
func (r *PIDRegulator) Reset() {
	r.integral = 0
	r.prevErr = 0
	r.primed = false
}

// Regulate computes the control effort for err at time t (seconds).
func (r *PIDRegulator) Regulate(err, t float64) float64 {
	derr := 0.0
	if r.primed {
		dt := t - r.prevT
		if dt > 0 {
			derr = (err - r.prevErr) / dt
			r.integral += 0.5 * (err + r.prevErr) * dt
		}
	}

	u := r.p*err + r.d*derr + r.i*r.integral

	r.prevErr = err
	r.prevT = t
	r.primed = true

	if math.Abs(u) > r.sat {
		u = math.Copysign(r.sat, u)
		r.integral = 0
	}
	return u
}
