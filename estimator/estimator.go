// Package estimator fuses raw sensor samples into the per-cycle
// VehicleState. It owns the extended Kalman filter, the staleness clocks
// and the dropout fault that feeds the mode arbiter.
package estimator

import (
	"time"

	"github.com/rs/zerolog"

	"gca-engine/config"
	"gca-engine/vehicle"
)

// ImuSample carries an orientation/angular-rate measurement. Samples arrive
// already expressed in the vehicle frame; coordinate transforms are an
// upstream responsibility.
type ImuSample struct {
	Stamp time.Time
	Valid bool
	Roll  float64
	Pitch float64
	Yaw   float64
	Rates [3]float64 // p, q, r
}

// DvlSample carries a body-frame velocity measurement.
type DvlSample struct {
	Stamp time.Time
	Valid bool
	Vel   [3]float64 // u, v, w
}

// DepthSample carries a pressure-derived depth measurement.
type DepthSample struct {
	Stamp time.Time
	Valid bool
	Depth float64
}

// Sample is one inbound measurement; exactly one field is non-nil.
type Sample struct {
	IMU   *ImuSample
	DVL   *DvlSample
	Depth *DepthSample
}

// Estimator wraps the EKF with arrival-order ingestion, per-sensor stale
// rejection and the two-level staleness policy of the pipeline: STALE after
// the first threshold, SENSOR_FAULT after the second.
type Estimator struct {
	ekf *EKF
	log zerolog.Logger

	staleAfter   time.Duration
	dropoutAfter time.Duration

	lastImu   time.Time
	lastDvl   time.Time
	lastDepth time.Time
	lastAny   time.Time
	lastTick  time.Time

	rejected uint64
	lastGood vehicle.VehicleState
	haveGood bool
}

func New(cfg config.EKFConfig, st config.Staleness, log zerolog.Logger) *Estimator {
	return &Estimator{
		ekf:          NewEKF(cfg),
		log:          log.With().Str("component", "estimator").Logger(),
		staleAfter:   st.Stale,
		dropoutAfter: st.Dropout,
	}
}

// Ingest applies one measurement correction. Samples older than the last
// processed stamp of their sensor are rejected so the filter never steps
// backward; invalid samples are dropped without touching the clocks.
func (e *Estimator) Ingest(s Sample) {
	switch {
	case s.IMU != nil:
		if !s.IMU.Valid || !s.IMU.Stamp.After(e.lastImu) {
			e.rejected++
			return
		}
		if e.ekf.correctIMU(*s.IMU) {
			e.lastImu = s.IMU.Stamp
			e.noteSample(s.IMU.Stamp)
		}
	case s.DVL != nil:
		if !s.DVL.Valid || !s.DVL.Stamp.After(e.lastDvl) {
			e.rejected++
			return
		}
		if e.ekf.correctDVL(*s.DVL) {
			e.lastDvl = s.DVL.Stamp
			e.noteSample(s.DVL.Stamp)
		}
	case s.Depth != nil:
		if !s.Depth.Valid || !s.Depth.Stamp.After(e.lastDepth) {
			e.rejected++
			return
		}
		if e.ekf.correctDepth(*s.Depth) {
			e.lastDepth = s.Depth.Stamp
			e.noteSample(s.Depth.Stamp)
		}
	}
}

func (e *Estimator) noteSample(ts time.Time) {
	if ts.After(e.lastAny) {
		e.lastAny = ts
	}
}

// Rejected returns the count of dropped stale/invalid samples.
func (e *Estimator) Rejected() uint64 { return e.rejected }

// Tick runs one estimator cycle at the output rate: predict forward, judge
// staleness and publish the snapshot. On a numeric fault the filter resets
// and the previous good snapshot is held for the cycle.
func (e *Estimator) Tick(now time.Time) (vehicle.VehicleState, vehicle.Fault) {
	var dt float64
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick).Seconds()
	}
	e.lastTick = now
	if dt <= 0 {
		dt = 1e-3
	}
	if dt > 0.5 {
		// A scheduling gap this large means the prediction model is no
		// longer trustworthy over the interval; cap it and let the
		// covariance carry the uncertainty.
		dt = 0.5
	}

	e.ekf.Predict(dt)

	if !allFinite(e.ekf.xk) || !allFiniteMat(e.ekf.Pxk) {
		e.log.Error().Msg("non-finite state, filter reset")
		e.ekf.resetState()
		held := e.lastGood
		held.Stamp = now
		held.Stale = true
		return held, vehicle.FaultNumeric
	}

	fault := vehicle.FaultNone
	stale := false
	if e.lastAny.IsZero() {
		stale = true
	} else {
		age := now.Sub(e.lastAny)
		if age > e.staleAfter {
			stale = true
		}
		if age > e.dropoutAfter {
			fault = vehicle.FaultSensorDropout
		}
	}
	if stale && fault == vehicle.FaultNone {
		fault = vehicle.FaultSensorStale
	}

	st := e.snapshot(now, stale)
	if !stale {
		e.lastGood = st
		e.haveGood = true
	}
	return st, fault
}

func (e *Estimator) snapshot(now time.Time, stale bool) vehicle.VehicleState {
	x := e.ekf.xk
	return vehicle.VehicleState{
		Stamp:  now,
		Pos:    [3]float64{x[ixPos], x[ixPos+1], x[ixPos+2]},
		Roll:   x[ixAtt],
		Pitch:  x[ixAtt+1],
		Yaw:    x[ixAtt+2],
		Vel:    [3]float64{x[ixVel], x[ixVel+1], x[ixVel+2]},
		AngVel: [3]float64{x[ixRate], x[ixRate+1], x[ixRate+2]},
		Stale:  stale,
		PosVar: e.ekf.posVar(),
	}
}
