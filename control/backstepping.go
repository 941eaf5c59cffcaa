package control

import (
	"gca-engine/config"
	"gca-engine/vehicle"
)

// backstepping is the path-following autopilot: a model-based surge speed
// law plus a two-step backstepping heading law tracking the reference
// model's (psi_d, r_d, r_d_dot) tuple. Gains and the mass/inertia/damping
// coefficients come from configuration.
type backstepping struct {
	g config.GainsConfig
}

// controlLaw returns body-frame [surge force, sway force, yaw moment].
//
// Heading: with z1 the wrapped heading error and alpha1 = r_d - k1*z1 the
// virtual rate command, the yaw moment tracks alpha1 and adds the -z1
// cross term that makes the cascaded error dynamics contracting for any
// k1, k2 > 0, which bounds cross-track convergence under the LOS geometry.
func (b *backstepping) controlLaw(u, uD, uDDot, v, psi, psiD, r, rD, rDDot float64) (float64, float64, float64) {
	// surge: feedforward on the reference acceleration, proportional
	// correction on the speed error, linear damping compensation
	tauX := b.g.SurgeMass*(uDDot+b.g.SurgeK*(uD-u)) + b.g.SurgeDamp*u

	// sway is unactuated along the path; damp lateral drift
	tauY := -b.g.SwayDamp * v

	z1 := vehicle.WrapPi(psi - psiD)
	alpha1 := rD - b.g.YawK1*z1
	z2 := r - alpha1
	alpha1Dot := rDDot - b.g.YawK1*(r-rD)

	tauN := b.g.YawInert*alpha1Dot - z1 - b.g.YawK2*z2

	return tauX, tauY, tauN
}
