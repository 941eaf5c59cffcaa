package estimator

import (
	"math"

	"gca-engine/config"
	"gca-engine/vehicle"
)

// State vector layout: [x y z | roll pitch yaw | u v w | p q r].
const (
	ixPos  = 0
	ixAtt  = 3
	ixVel  = 6
	ixRate = 9
	nState = 12
)

// EKF fuses asynchronous IMU, DVL and depth measurements with a kinematic
// prediction model. The prediction step propagates body velocities through
// the current attitude; corrections are linear selectors on the state with
// per-sensor noise, applied in arrival order.
type EKF struct {
	cfg config.EKFConfig

	xk  []float64
	Pxk [][]float64
}

func NewEKF(cfg config.EKFConfig) *EKF {
	k := &EKF{cfg: cfg}
	k.resetState()
	return k
}

func (k *EKF) resetState() {
	k.xk = make([]float64, nState)
	k.Pxk = zeroMat(nState, nState)
	for i := 0; i < 3; i++ {
		k.Pxk[ixPos+i][ixPos+i] = k.cfg.InitPosVar
		k.Pxk[ixAtt+i][ixAtt+i] = 0.5
		k.Pxk[ixVel+i][ixVel+i] = k.cfg.InitVelVar
		k.Pxk[ixRate+i][ixRate+i] = 0.1
	}
}

// bodyToNED returns the rotation matrix from body to the odometry frame for
// the current attitude estimate.
func (k *EKF) bodyToNED() [][]float64 {
	cr := math.Cos(k.xk[ixAtt])
	sr := math.Sin(k.xk[ixAtt])
	cp := math.Cos(k.xk[ixAtt+1])
	sp := math.Sin(k.xk[ixAtt+1])
	cy := math.Cos(k.xk[ixAtt+2])
	sy := math.Sin(k.xk[ixAtt+2])
	return [][]float64{
		{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr},
		{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr},
		{-sp, cp * sr, cp * cr},
	}
}

// eulerRateMap returns the matrix mapping body angular rates to Euler angle
// rates. Pitch is kept clear of the +-pi/2 singularity by the clamp.
func (k *EKF) eulerRateMap() [][]float64 {
	cr := math.Cos(k.xk[ixAtt])
	sr := math.Sin(k.xk[ixAtt])
	cp := math.Cos(k.xk[ixAtt+1])
	if math.Abs(cp) < 0.05 {
		cp = math.Copysign(0.05, cp)
	}
	tp := math.Sin(k.xk[ixAtt+1]) / cp
	return [][]float64{
		{1, sr * tp, cr * tp},
		{0, cr, -sr},
		{0, sr / cp, cr / cp},
	}
}

// Predict advances the state by dt seconds using the kinematic model and
// inflates the covariance with the configured process noise.
func (k *EKF) Predict(dt float64) {
	rot := k.bodyToNED()
	tmap := k.eulerRateMap()

	// Nonlinear state propagation.
	dp := matVec(rot, k.xk[ixVel:ixVel+3])
	da := matVec(tmap, k.xk[ixRate:ixRate+3])
	for i := 0; i < 3; i++ {
		k.xk[ixPos+i] += dp[i] * dt
		k.xk[ixAtt+i] += da[i] * dt
	}
	k.xk[ixAtt+2] = vehicle.WrapPi(k.xk[ixAtt+2])

	// Linearized transition: velocity blocks coupled through the attitude,
	// attitude partials dropped (kinematic EKF simplification).
	phi := identity(nState)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			phi[ixPos+i][ixVel+j] = rot[i][j] * dt
			phi[ixAtt+i][ixRate+j] = tmap[i][j] * dt
		}
	}

	qLin := k.cfg.SigmaAccel * k.cfg.SigmaAccel
	qAng := k.cfg.SigmaAngAcc * k.cfg.SigmaAngAcc
	qk := zeroMat(nState, nState)
	for i := 0; i < 3; i++ {
		qk[ixPos+i][ixPos+i] = math.Pow(dt, 3) / 3.0 * qLin
		qk[ixPos+i][ixVel+i] = math.Pow(dt, 2) / 2.0 * qLin
		qk[ixVel+i][ixPos+i] = qk[ixPos+i][ixVel+i]
		qk[ixVel+i][ixVel+i] = dt * qLin
		qk[ixAtt+i][ixAtt+i] = math.Pow(dt, 3) / 3.0 * qAng
		qk[ixAtt+i][ixRate+i] = math.Pow(dt, 2) / 2.0 * qAng
		qk[ixRate+i][ixAtt+i] = qk[ixAtt+i][ixRate+i]
		qk[ixRate+i][ixRate+i] = dt * qAng
	}

	k.Pxk = matAdd(matMul(phi, matMul(k.Pxk, transpose(phi))), qk)
	k.Pxk = symmetrize(k.Pxk)
}

// correct applies one linear measurement update. idx selects the measured
// state components, wrap marks angular innovations that must be wrapped.
// Returns false if the update produced a non-finite state and was rolled
// back by a reset.
func (k *EKF) correct(idx []int, z []float64, rdiag []float64, wrap []bool) bool {
	m := len(idx)
	h := zeroMat(m, nState)
	rk := make([]float64, m)
	for i, j := range idx {
		h[i][j] = 1
		rk[i] = z[i] - k.xk[j]
		if wrap[i] {
			rk[i] = vehicle.WrapPi(rk[i])
		}
	}

	pht := matMul(k.Pxk, transpose(h)) // n x m
	s := matMul(h, pht)                // m x m
	for i := 0; i < m; i++ {
		s[i][i] += rdiag[i]
	}
	kk := matMul(pht, pinv(s)) // n x m

	incr := matVec(kk, rk)
	for i := range k.xk {
		k.xk[i] += incr[i]
	}
	k.xk[ixAtt+2] = vehicle.WrapPi(k.xk[ixAtt+2])

	k.Pxk = matSub(k.Pxk, matMul(kk, matMul(s, transpose(kk))))
	k.Pxk = symmetrize(k.Pxk)

	if !allFinite(k.xk) || !allFiniteMat(k.Pxk) {
		k.resetState()
		return false
	}
	return true
}

func (k *EKF) correctIMU(s ImuSample) bool {
	return k.correct(
		[]int{ixAtt, ixAtt + 1, ixAtt + 2, ixRate, ixRate + 1, ixRate + 2},
		[]float64{s.Roll, s.Pitch, s.Yaw, s.Rates[0], s.Rates[1], s.Rates[2]},
		[]float64{k.cfg.ImuOrientVar, k.cfg.ImuOrientVar, k.cfg.ImuOrientVar,
			k.cfg.ImuRateVar, k.cfg.ImuRateVar, k.cfg.ImuRateVar},
		[]bool{true, true, true, false, false, false},
	)
}

func (k *EKF) correctDVL(s DvlSample) bool {
	return k.correct(
		[]int{ixVel, ixVel + 1, ixVel + 2},
		[]float64{s.Vel[0], s.Vel[1], s.Vel[2]},
		[]float64{k.cfg.DvlVar, k.cfg.DvlVar, k.cfg.DvlVar},
		[]bool{false, false, false},
	)
}

func (k *EKF) correctDepth(s DepthSample) bool {
	return k.correct(
		[]int{ixPos + 2},
		[]float64{s.Depth},
		[]float64{k.cfg.DepthVar},
		[]bool{false},
	)
}

// posVar is the trace of the position covariance block.
func (k *EKF) posVar() float64 {
	return k.Pxk[0][0] + k.Pxk[1][1] + k.Pxk[2][2]
}
