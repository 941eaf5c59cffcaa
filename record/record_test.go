package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/vehicle"
)

func TestWriteParseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.gcl")

	w, err := NewWriter(path, 4)
	require.NoError(t, err)

	base := time.Unix(1700000000, 123000000)
	recs := []Record{
		{
			Stamp: base,
			Mode:  vehicle.Mode{Context: vehicle.ContextReal, Phase: vehicle.PhasePathFollowing},
			State: vehicle.VehicleState{
				Pos: [3]float64{1.5, -2.25, 0.75},
				Yaw: 0.5,
				Vel: [3]float64{0.4, 0, 0},
			},
			Setpoint: vehicle.Setpoint{Pos: [3]float64{10, 0, 1}, Yaw: 0.1, Surge: 0.4},
			Wrench:   vehicle.Wrench{12, 0, 3, 0, 0, 1.5},
			Forces:   []float64{5, 5, 1.5, 1.5},
		},
		{
			Stamp:  base.Add(50 * time.Millisecond),
			Mode:   vehicle.Mode{Context: vehicle.ContextReal, Phase: vehicle.PhaseStationKeeping, Safe: true},
			Fault:  vehicle.FaultSensorDropout,
			State:  vehicle.VehicleState{Stale: true},
			Forces: []float64{0, 0, 0, 0},
			Status: vehicle.AllocPartial,
		},
	}
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	p := NewParser(path)
	require.NoError(t, p.Parse())
	require.Equal(t, 4, p.Thrusters)
	require.Len(t, p.Records, 2)

	got := p.Records[0]
	assert.True(t, got.Stamp.Equal(base))
	assert.Equal(t, vehicle.ContextReal, got.Mode.Context)
	assert.Equal(t, vehicle.PhasePathFollowing, got.Mode.Phase)
	assert.False(t, got.Mode.Safe)
	assert.Equal(t, recs[0].State.Pos, got.State.Pos)
	assert.Equal(t, recs[0].State.Yaw, got.State.Yaw)
	assert.Equal(t, recs[0].Setpoint.Pos, got.Setpoint.Pos)
	assert.Equal(t, recs[0].Wrench, got.Wrench)
	assert.Equal(t, recs[0].Forces, got.Forces)
	assert.Equal(t, vehicle.AllocOK, got.Status)

	got = p.Records[1]
	assert.True(t, got.Mode.Safe)
	assert.True(t, got.State.Stale)
	assert.Equal(t, vehicle.FaultSensorDropout, got.Fault)
	assert.Equal(t, vehicle.AllocPartial, got.Status)

	assert.Equal(t, 50*time.Millisecond, p.Duration())
}

func TestParserRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	// header-sized file with the wrong magic
	data := []byte{0, 0, 0, 0, 1, 0, 2, 0}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := NewParser(path)
	assert.Error(t, p.Parse())
}

func TestWriterPadsShortForceVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.gcl")
	w, err := NewWriter(path, 6)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Stamp: time.Now(), Forces: []float64{1, 2}}))
	require.NoError(t, w.Close())

	p := NewParser(path)
	require.NoError(t, p.Parse())
	require.Len(t, p.Records, 1)
	assert.Equal(t, []float64{1, 2, 0, 0, 0, 0}, p.Records[0].Forces)
}
