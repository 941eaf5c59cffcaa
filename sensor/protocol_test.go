package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gca-engine/estimator"
)

func TestParsePacketImu(t *testing.T) {
	stamp := time.UnixMicro(time.Now().UnixMicro())
	in := estimator.Sample{IMU: &estimator.ImuSample{
		Stamp: stamp, Valid: true,
		Roll: 0.01, Pitch: -0.02, Yaw: 1.57,
		Rates: [3]float64{0.1, -0.2, 0.3},
	}}

	out, err := ParsePacket(EncodePacket(in))
	require.NoError(t, err)
	require.NotNil(t, out.IMU)
	assert.True(t, out.IMU.Stamp.Equal(stamp))
	assert.True(t, out.IMU.Valid)
	assert.Equal(t, 1.57, out.IMU.Yaw)
	assert.Equal(t, [3]float64{0.1, -0.2, 0.3}, out.IMU.Rates)
}

func TestParsePacketDepthInvalidFlag(t *testing.T) {
	stamp := time.UnixMicro(time.Now().UnixMicro())
	in := estimator.Sample{Depth: &estimator.DepthSample{Stamp: stamp, Valid: false, Depth: 3.2}}

	out, err := ParsePacket(EncodePacket(in))
	require.NoError(t, err)
	require.NotNil(t, out.Depth)
	assert.False(t, out.Depth.Valid)
	assert.Equal(t, 3.2, out.Depth.Depth)
}

func TestParsePacketRejectsMalformed(t *testing.T) {
	_, err := ParsePacket([]byte{0x47, 0x43})
	assert.Error(t, err, "short packet")

	good := EncodePacket(estimator.Sample{DVL: &estimator.DvlSample{Stamp: time.Now(), Valid: true}})

	bad := append([]byte{}, good...)
	bad[0] = 0xFF
	_, err = ParsePacket(bad)
	assert.Error(t, err, "bad magic")

	bad = append([]byte{}, good...)
	bad[2] = 0x7F
	_, err = ParsePacket(bad)
	assert.Error(t, err, "unknown type")

	_, err = ParsePacket(good[:len(good)-8])
	assert.Error(t, err, "truncated body")
}
