// Package alloc maps a requested body wrench onto per-thruster forces.
// The solver is a weighted damped-least-squares pseudo-inverse with
// iterative saturation redistribution: thrusters that hit a bound are
// frozen there and the remaining wrench is re-solved over the unsaturated
// set, up to a fixed iteration limit. The output is always within bounds
// and deterministic for identical inputs.
package alloc

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"gca-engine/vehicle"
)

type Allocator struct {
	cfg *Config
}

func New(cfg *Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Config returns the immutable thruster configuration.
func (a *Allocator) Config() *Config { return a.cfg }

// Allocate solves for the per-thruster forces realizing w. When the wrench
// is outside the achievable envelope even after redistribution, the best
// bounded approximation is returned with AllocPartial and the
// ALLOCATION_INFEASIBLE fault; a degraded command always beats none.
func (a *Allocator) Allocate(w vehicle.Wrench, now time.Time) (vehicle.ThrusterCommand, vehicle.Fault) {
	n := a.cfg.N()
	forces := make([]float64, n)

	if !w.Finite() {
		// never derive a command from a known-invalid wrench; all zeros is
		// the only safe thing to hand the driver
		return vehicle.ThrusterCommand{Stamp: now, Forces: forces, Status: vehicle.AllocPartial},
			vehicle.FaultNumeric
	}

	tau := make([]float64, 6)
	copy(tau, w[:])

	active := make([]int, 0, n)
	for i := 0; i < n; i++ {
		active = append(active, i)
	}

	for iter := 0; iter < a.cfg.MaxIter && len(active) > 0; iter++ {
		sol := a.solve(active, tau)

		// freeze every violator at its bound and remove its contribution
		// from the remaining wrench
		saturated := false
		remaining := active[:0]
		for k, i := range active {
			f := sol[k]
			clamped := a.cfg.Clamp(i, f)
			if clamped != f {
				saturated = true
				forces[i] = clamped
				for r := 0; r < 6; r++ {
					tau[r] -= a.cfg.B.At(r, i) * clamped
				}
			} else {
				forces[i] = f
				remaining = append(remaining, i)
			}
		}
		active = remaining
		if !saturated {
			break
		}
	}

	// bounds guarantee: whatever the iteration state, nothing leaves here
	// outside [min, max]
	for i := range forces {
		forces[i] = a.cfg.Clamp(i, forces[i])
	}

	status := vehicle.AllocOK
	fault := vehicle.FaultNone
	if a.residual(forces, w) > allocTolerance(w) {
		status = vehicle.AllocPartial
		fault = vehicle.FaultAllocInfeasible
	}

	return vehicle.ThrusterCommand{Stamp: now, Forces: forces, Status: status}, fault
}

// solve computes the weighted damped-least-squares solution over the
// active thruster set: f = W^-1 B^T (B W^-1 B^T + damping^2 I)^-1 tau.
// The damping keeps the inverse bounded when the active columns lose rank
// (coplanar thruster axes); the SVD pseudo-inverse truncates whatever the
// damping leaves ill-conditioned.
func (a *Allocator) solve(active []int, tau []float64) []float64 {
	m := len(active)
	ba := mat.NewDense(6, m, nil)
	winv := make([]float64, m)
	for k, i := range active {
		for r := 0; r < 6; r++ {
			ba.Set(r, k, a.cfg.B.At(r, i))
		}
		winv[k] = 1.0 / a.cfg.Thrusters[i].Weight
	}

	// M = B W^-1 B^T + damping^2 I
	bw := mat.NewDense(6, m, nil)
	for r := 0; r < 6; r++ {
		for k := 0; k < m; k++ {
			bw.Set(r, k, ba.At(r, k)*winv[k])
		}
	}
	var mMat mat.Dense
	mMat.Mul(bw, ba.T())
	lam2 := a.cfg.Damping * a.cfg.Damping
	for r := 0; r < 6; r++ {
		mMat.Set(r, r, mMat.At(r, r)+lam2)
	}

	mInv := pinv(&mMat)

	// y = M^-1 tau
	y := make([]float64, 6)
	for r := 0; r < 6; r++ {
		sum := 0.0
		for c := 0; c < 6; c++ {
			sum += mInv.At(r, c) * tau[c]
		}
		y[r] = sum
	}

	// f = W^-1 B^T y
	f := make([]float64, m)
	for k := 0; k < m; k++ {
		sum := 0.0
		for r := 0; r < 6; r++ {
			sum += ba.At(r, k) * y[r]
		}
		f[k] = winv[k] * sum
	}
	return f
}

// residual is the Euclidean distance between the requested wrench and the
// wrench the force vector actually produces.
func (a *Allocator) residual(forces []float64, w vehicle.Wrench) float64 {
	sum := 0.0
	for r := 0; r < 6; r++ {
		achieved := 0.0
		for i, f := range forces {
			achieved += a.cfg.B.At(r, i) * f
		}
		d := achieved - w[r]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func allocTolerance(w vehicle.Wrench) float64 {
	norm := 0.0
	for _, v := range w {
		norm += v * v
	}
	return 1e-6 + 0.01*math.Sqrt(norm)
}

// pinv computes the SVD pseudo-inverse of a square matrix, truncating
// singular values below the standard eps * n * sigma_max tolerance.
func pinv(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return mat.NewDense(c, r, nil)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	maxS := 0.0
	if len(s) > 0 {
		maxS = s[0]
	}
	tol := 1e-15 * float64(max(r, c)) * maxS

	sigInv := mat.NewDense(len(s), len(s), nil)
	for i, val := range s {
		if val > tol {
			sigInv.Set(i, i, 1.0/val)
		}
	}

	var tmp, res mat.Dense
	tmp.Mul(&v, sigInv)
	res.Mul(&tmp, u.T())
	return &res
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
