package estimator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/config"
)

func testConfig() (config.EKFConfig, config.Staleness) {
	return config.EKFConfig{
			SigmaAccel:   0.08,
			SigmaAngAcc:  0.05,
			ImuOrientVar: 0.0025,
			ImuRateVar:   0.0004,
			DvlVar:       0.0009,
			DepthVar:     0.0025,
			InitPosVar:   25.0,
			InitVelVar:   1.0,
		}, config.Staleness{
			Stale:   250 * time.Millisecond,
			Dropout: 2 * time.Second,
		}
}

func newTestEstimator() *Estimator {
	ekf, st := testConfig()
	return New(ekf, st, zerolog.Nop())
}

// feed pushes one consistent sample set for a vehicle at rest.
func feedAtRest(e *Estimator, ts time.Time, yaw, depth float64) {
	e.Ingest(Sample{IMU: &ImuSample{Stamp: ts, Valid: true, Yaw: yaw}})
	e.Ingest(Sample{DVL: &DvlSample{Stamp: ts, Valid: true}})
	e.Ingest(Sample{Depth: &DepthSample{Stamp: ts, Valid: true, Depth: depth}})
}

func TestEstimatorConvergesAtRest(t *testing.T) {
	e := newTestEstimator()

	const yaw, depth = 0.3, 2.0

	ts := time.Now()
	for i := 0; i < 250; i++ {
		ts = ts.Add(20 * time.Millisecond)
		feedAtRest(e, ts, yaw, depth)
		e.Tick(ts)
	}

	st, fault := e.Tick(ts.Add(20 * time.Millisecond))
	assert.Equal(t, "NONE", fault.String())
	assert.False(t, st.Stale)
	assert.InDelta(t, yaw, st.Yaw, 0.05)
	assert.InDelta(t, depth, st.Pos[2], 0.1)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.0, st.Vel[i], 0.05, "vel axis %d", i)
	}
	// depth is the only observed position axis; its correction must pull
	// the trace below the prior
	assert.Less(t, st.PosVar, 60.0)
}

func TestEstimatorStalenessEscalates(t *testing.T) {
	e := newTestEstimator()

	ts := time.Now()
	for i := 0; i < 10; i++ {
		ts = ts.Add(20 * time.Millisecond)
		feedAtRest(e, ts, 0, 1)
		e.Tick(ts)
	}

	st, fault := e.Tick(ts.Add(20 * time.Millisecond))
	require.False(t, st.Stale)
	require.NotEqual(t, "SENSOR_STALE", fault.String())
	varBefore := st.PosVar

	// past the first threshold: flagged stale, estimate still published
	st, fault = e.Tick(ts.Add(400 * time.Millisecond))
	assert.True(t, st.Stale)
	assert.Equal(t, "SENSOR_STALE", fault.String())
	assert.Greater(t, st.PosVar, varBefore, "covariance must grow without corrections")

	// past the dropout threshold: escalates to a sensor fault
	st, fault = e.Tick(ts.Add(3 * time.Second))
	assert.True(t, st.Stale)
	assert.Equal(t, "SENSOR_FAULT", fault.String())
}

func TestEstimatorRejectsOutOfOrderSamples(t *testing.T) {
	e := newTestEstimator()

	ts := time.Now()
	e.Ingest(Sample{DVL: &DvlSample{Stamp: ts, Valid: true}})
	require.Equal(t, uint64(0), e.Rejected())

	// same stamp and an older stamp are both rejected
	e.Ingest(Sample{DVL: &DvlSample{Stamp: ts, Valid: true}})
	e.Ingest(Sample{DVL: &DvlSample{Stamp: ts.Add(-50 * time.Millisecond), Valid: true}})
	assert.Equal(t, uint64(2), e.Rejected())

	// per-sensor ordering: an IMU sample older than the DVL one is fine
	e.Ingest(Sample{IMU: &ImuSample{Stamp: ts.Add(-10 * time.Millisecond), Valid: true}})
	assert.Equal(t, uint64(2), e.Rejected())

	// invalid samples are dropped regardless of stamp
	e.Ingest(Sample{Depth: &DepthSample{Stamp: ts.Add(time.Second), Valid: false, Depth: 1}})
	assert.Equal(t, uint64(3), e.Rejected())
}

func TestEstimatorHeadingTracksWrap(t *testing.T) {
	e := newTestEstimator()

	// heading measurements hovering around the +-pi cut must not drag the
	// estimate toward zero through the innovation
	ts := time.Now()
	yaw := 3.1
	for i := 0; i < 100; i++ {
		ts = ts.Add(20 * time.Millisecond)
		e.Ingest(Sample{IMU: &ImuSample{Stamp: ts, Valid: true, Yaw: yaw}})
		e.Ingest(Sample{DVL: &DvlSample{Stamp: ts, Valid: true}})
		e.Tick(ts)
	}

	st, _ := e.Tick(ts.Add(20 * time.Millisecond))
	assert.InDelta(t, 3.1, st.Yaw, 0.1)
}
