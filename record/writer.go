// Package record writes and reads the on-disk cycle log: one fixed-size
// binary record per control cycle, sized by the thruster count declared in
// the file header.
package record

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"gca-engine/vehicle"
)

const (
	Magic   = 0x4C414347 // "GCAL"
	Version = 1

	globalHdrLen = 8
	recFixedLen  = 12 + (12+6+6)*8 // ts + flags block, then state/setpoint/wrench floats
)

// Record is one logged control cycle.
type Record struct {
	Stamp    time.Time
	Mode     vehicle.Mode
	Fault    vehicle.Fault
	State    vehicle.VehicleState
	Setpoint vehicle.Setpoint
	Wrench   vehicle.Wrench
	Forces   []float64
	Status   vehicle.AllocStatus
}

// Writer appends records to a cycle log. Safe for use from multiple
// goroutines.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
	n   int // thruster count
}

func NewWriter(path string, thrusters int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		w:   f,
		buf: make([]byte, recFixedLen+thrusters*8),
		n:   thrusters,
	}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	// Magic(4), Version(2), Thrusters(2)
	b := make([]byte, globalHdrLen)
	binary.LittleEndian.PutUint32(b[0:], Magic)
	binary.LittleEndian.PutUint16(b[4:], Version)
	binary.LittleEndian.PutUint16(b[6:], uint16(w.n))
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.buf
	binary.LittleEndian.PutUint32(b[0:], uint32(rec.Stamp.Unix()))
	binary.LittleEndian.PutUint32(b[4:], uint32(rec.Stamp.Nanosecond()/1000))
	b[8] = uint8(rec.Mode.Context)
	b[9] = uint8(rec.Mode.Phase)
	flags := uint8(0)
	if rec.Mode.Safe {
		flags |= 0x01
	}
	if rec.State.Stale {
		flags |= 0x02
	}
	if rec.Status == vehicle.AllocPartial {
		flags |= 0x04
	}
	if rec.Setpoint.Reached {
		flags |= 0x08
	}
	b[10] = flags
	b[11] = uint8(rec.Fault)

	off := 12
	off = putFloats(b, off,
		rec.State.Pos[0], rec.State.Pos[1], rec.State.Pos[2],
		rec.State.Roll, rec.State.Pitch, rec.State.Yaw,
		rec.State.Vel[0], rec.State.Vel[1], rec.State.Vel[2],
		rec.State.AngVel[0], rec.State.AngVel[1], rec.State.AngVel[2])
	off = putFloats(b, off,
		rec.Setpoint.Pos[0], rec.Setpoint.Pos[1], rec.Setpoint.Pos[2],
		rec.Setpoint.Yaw, rec.Setpoint.Surge, rec.Setpoint.YawRate)
	off = putFloats(b, off, rec.Wrench[:]...)
	for i := 0; i < w.n; i++ {
		f := 0.0
		if i < len(rec.Forces) {
			f = rec.Forces[i]
		}
		off = putFloats(b, off, f)
	}

	_, err := w.w.Write(b[:off])
	return err
}

func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func putFloats(b []byte, off int, vals ...float64) int {
	for _, v := range vals {
		binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
		off += 8
	}
	return off
}
