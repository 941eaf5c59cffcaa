package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/vehicle"
)

func TestFormatStatus(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	mode := vehicle.Mode{Context: vehicle.ContextReal, Phase: vehicle.PhasePathFollowing}
	st := vehicle.VehicleState{
		Pos: [3]float64{1.234, -5.678, 2.5},
		Yaw: 1.571,
		Vel: [3]float64{0.4, 0, 0},
	}
	sp := vehicle.Setpoint{DistanceToGoal: 7.25, Reached: false}

	line := string(FormatStatus(stamp, mode, vehicle.FaultSensorStale, st, sp, vehicle.AllocOK))

	require.True(t, strings.HasPrefix(line, "GCA,20260314092653.589,"))
	require.True(t, strings.HasSuffix(line, "\r\n"))

	fields := strings.Split(strings.TrimSuffix(line, "\r\n"), ",")
	require.Len(t, fields, 14)
	assert.Equal(t, "REAL/PATH_FOLLOWING", fields[2])
	assert.Equal(t, "SENSOR_STALE", fields[3])
	assert.Equal(t, "1.23", fields[4])
	assert.Equal(t, "-5.68", fields[5])
	assert.Equal(t, "1.571", fields[7])
	assert.Equal(t, "7.25", fields[11])
	assert.Equal(t, "0", fields[12])
	assert.Equal(t, "OK", fields[13])
}

func TestFormatFault(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	line := string(FormatFault(stamp, vehicle.FaultAllocInfeasible))
	assert.Equal(t, "FAULT,20260314092653.000,ALLOCATION_INFEASIBLE\r\n", line)
}
