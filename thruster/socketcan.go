package thruster

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/rs/zerolog"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"gca-engine/vehicle"
)

// CANOutput transmits thruster forces over SocketCAN. Forces are encoded
// as little-endian int16 centinewtons, four thrusters per frame, with the
// frame ID offset from the configured base by the frame index.
type CANOutput struct {
	conn net.Conn
	tx   *socketcan.Transmitter
	log  zerolog.Logger

	baseID uint32
	count  int
}

const thrustersPerFrame = 4

func NewCANOutput(ctx context.Context, iface string, baseID uint32, count int, log zerolog.Logger) (*CANOutput, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &CANOutput{
		conn:   conn,
		tx:     socketcan.NewTransmitter(conn),
		log:    log.With().Str("component", "thruster-can").Logger(),
		baseID: baseID,
		count:  count,
	}, nil
}

func (o *CANOutput) Write(ctx context.Context, cmd vehicle.ThrusterCommand) error {
	if len(cmd.Forces) != o.count {
		return fmt.Errorf("thruster command has %d forces, want %d", len(cmd.Forces), o.count)
	}
	frames := (o.count + thrustersPerFrame - 1) / thrustersPerFrame
	for fi := 0; fi < frames; fi++ {
		var f can.Frame
		f.ID = o.baseID + uint32(fi)
		lo := fi * thrustersPerFrame
		hi := lo + thrustersPerFrame
		if hi > o.count {
			hi = o.count
		}
		for i := lo; i < hi; i++ {
			binary.LittleEndian.PutUint16(f.Data[(i-lo)*2:], uint16(encodeForce(cmd.Forces[i])))
		}
		f.Length = uint8((hi - lo) * 2)
		if err := o.tx.TransmitFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit frame %d: %w", fi, err)
		}
	}
	return nil
}

func (o *CANOutput) Close() error {
	if o.conn != nil {
		return o.conn.Close()
	}
	return nil
}

// encodeForce converts newtons to clamped int16 centinewtons.
func encodeForce(n float64) int16 {
	cn := math.Round(n * 100)
	if cn > math.MaxInt16 {
		return math.MaxInt16
	}
	if cn < math.MinInt16 {
		return math.MinInt16
	}
	return int16(cn)
}
