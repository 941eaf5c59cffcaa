package guidance

// secondOrder is a critically-damped reference filter discretized with the
// trapezoidal (Tustin) rule. It shapes raw guidance references into smooth
// setpoints with consistent derivatives, so the controller never sees a
// step. The linear two-state trapezoidal update is solved in closed form.
type secondOrder struct {
	omega float64
	zeta  float64
	h     float64

	x float64 // filtered value
	v float64 // filtered derivative
}

func newSecondOrder(omega, zeta, h float64) *secondOrder {
	return &secondOrder{omega: omega, zeta: zeta, h: h}
}

// Reset seeds the filter, used at target acceptance and on heading
// unwrap so the setpoint starts from the vehicle's actual state.
func (f *secondOrder) Reset(x, v float64) {
	f.x = x
	f.v = v
}

// Step advances the filter toward ref and returns value, derivative and
// second derivative.
func (f *secondOrder) Step(ref float64) (float64, float64, float64) {
	a := f.omega * f.omega
	b := 2 * f.zeta * f.omega
	h := f.h

	// Trapezoidal update of x' = v, v' = a(ref - x) - b v.
	num := f.v + h/2*(2*a*(ref-f.x)-b*f.v) - h*h/4*a*f.v
	den := 1 + h/2*b + h*h/4*a
	vNext := num / den
	xNext := f.x + h/2*(f.v+vNext)

	f.x = xNext
	f.v = vNext
	acc := a*(ref-f.x) - b*f.v
	return f.x, f.v, acc
}

// refModel shapes the (speed, heading) pair for the path-following law,
// producing the full setpoint tuple the backstepping controller consumes.
type refModel struct {
	surge   *secondOrder
	heading *secondOrder
}

func newRefModel(omega, zeta, h float64) *refModel {
	return &refModel{
		surge:   newSecondOrder(omega, zeta, h),
		heading: newSecondOrder(omega, zeta, h),
	}
}

func (m *refModel) Reset(u, psi float64) {
	m.surge.Reset(u, 0)
	m.heading.Reset(psi, 0)
}

// Step returns u_d, u_d_dot, psi_d, r_d, r_d_dot.
func (m *refModel) Step(speedRef, psiRef float64) (float64, float64, float64, float64, float64) {
	ud, udDot, _ := m.surge.Step(speedRef)
	psiD, rd, rdDot := m.heading.Step(psiRef)
	return ud, udDot, psiD, rd, rdDot
}
