package sensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"gca-engine/estimator"
)

// Wire format for hardware sensor packets, one sample per datagram:
//
//	magic   uint16  0x4347 ("GC", little endian)
//	type    uint8   sample type
//	flags   uint8   bit 0: valid
//	stampUs int64   microseconds since epoch
//	payload float64 x N, little endian
const (
	Magic  = 0x4347
	HdrLen = 12

	TypeImu   = 0x01
	TypeDvl   = 0x02
	TypeDepth = 0x03

	flagValid = 0x01
)

// ParsePacket decodes one datagram into a sample. Unknown types and short
// packets are errors; the caller counts and drops them.
func ParsePacket(data []byte) (estimator.Sample, error) {
	if len(data) < HdrLen {
		return estimator.Sample{}, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	if binary.LittleEndian.Uint16(data[0:2]) != Magic {
		return estimator.Sample{}, fmt.Errorf("invalid magic 0x%x", binary.LittleEndian.Uint16(data[0:2]))
	}

	typ := data[2]
	valid := data[3]&flagValid != 0
	stamp := time.UnixMicro(int64(binary.LittleEndian.Uint64(data[4:12])))
	body := data[HdrLen:]

	fields := func(n int) ([]float64, error) {
		if len(body) < 8*n {
			return nil, fmt.Errorf("type 0x%x body truncated: %d bytes", typ, len(body))
		}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i : 8*i+8]))
		}
		return out, nil
	}

	switch typ {
	case TypeImu:
		v, err := fields(6)
		if err != nil {
			return estimator.Sample{}, err
		}
		return estimator.Sample{IMU: &estimator.ImuSample{
			Stamp: stamp, Valid: valid,
			Roll: v[0], Pitch: v[1], Yaw: v[2],
			Rates: [3]float64{v[3], v[4], v[5]},
		}}, nil
	case TypeDvl:
		v, err := fields(3)
		if err != nil {
			return estimator.Sample{}, err
		}
		return estimator.Sample{DVL: &estimator.DvlSample{
			Stamp: stamp, Valid: valid,
			Vel: [3]float64{v[0], v[1], v[2]},
		}}, nil
	case TypeDepth:
		v, err := fields(1)
		if err != nil {
			return estimator.Sample{}, err
		}
		return estimator.Sample{Depth: &estimator.DepthSample{
			Stamp: stamp, Valid: valid, Depth: v[0],
		}}, nil
	default:
		return estimator.Sample{}, fmt.Errorf("unknown sample type 0x%x", typ)
	}
}

// EncodePacket builds the wire form of a sample, used by the simulator
// loop and by tests.
func EncodePacket(s estimator.Sample) []byte {
	put := func(typ byte, stamp time.Time, valid bool, vals ...float64) []byte {
		b := make([]byte, HdrLen+8*len(vals))
		binary.LittleEndian.PutUint16(b[0:2], Magic)
		b[2] = typ
		if valid {
			b[3] = flagValid
		}
		binary.LittleEndian.PutUint64(b[4:12], uint64(stamp.UnixMicro()))
		for i, v := range vals {
			binary.LittleEndian.PutUint64(b[HdrLen+8*i:], math.Float64bits(v))
		}
		return b
	}

	switch {
	case s.IMU != nil:
		m := s.IMU
		return put(TypeImu, m.Stamp, m.Valid, m.Roll, m.Pitch, m.Yaw, m.Rates[0], m.Rates[1], m.Rates[2])
	case s.DVL != nil:
		m := s.DVL
		return put(TypeDvl, m.Stamp, m.Valid, m.Vel[0], m.Vel[1], m.Vel[2])
	case s.Depth != nil:
		m := s.Depth
		return put(TypeDepth, m.Stamp, m.Valid, m.Depth)
	}
	return nil
}
