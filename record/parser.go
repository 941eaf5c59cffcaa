package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gca-engine/vehicle"
)

// Parser loads a cycle log written by Writer.
type Parser struct {
	Path string

	Thrusters int
	Records   []Record
}

func NewParser(path string) *Parser {
	return &Parser{Path: path}
}

func (p *Parser) Parse() error {
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.parse(f)
}

func (p *Parser) parse(r io.Reader) error {
	hdr := make([]byte, globalHdrLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return fmt.Errorf("log header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != Magic {
		return fmt.Errorf("bad log magic")
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != Version {
		return fmt.Errorf("unsupported log version %d", v)
	}
	p.Thrusters = int(binary.LittleEndian.Uint16(hdr[6:8]))

	recLen := recFixedLen + p.Thrusters*8
	buf := make([]byte, recLen)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("log record: %w", err)
		}
		p.Records = append(p.Records, decodeRecord(buf, p.Thrusters))
	}
	return nil
}

func decodeRecord(b []byte, n int) Record {
	var rec Record
	sec := int64(binary.LittleEndian.Uint32(b[0:4]))
	usec := int64(binary.LittleEndian.Uint32(b[4:8]))
	rec.Stamp = time.Unix(sec, usec*1000)
	rec.Mode.Context = vehicle.Context(b[8])
	rec.Mode.Phase = vehicle.Phase(b[9])
	flags := b[10]
	rec.Mode.Safe = flags&0x01 != 0
	rec.State.Stale = flags&0x02 != 0
	if flags&0x04 != 0 {
		rec.Status = vehicle.AllocPartial
	}
	rec.Setpoint.Reached = flags&0x08 != 0
	rec.Fault = vehicle.Fault(b[11])

	off := 12
	rec.State.Pos[0], off = getFloat(b, off)
	rec.State.Pos[1], off = getFloat(b, off)
	rec.State.Pos[2], off = getFloat(b, off)
	rec.State.Roll, off = getFloat(b, off)
	rec.State.Pitch, off = getFloat(b, off)
	rec.State.Yaw, off = getFloat(b, off)
	rec.State.Vel[0], off = getFloat(b, off)
	rec.State.Vel[1], off = getFloat(b, off)
	rec.State.Vel[2], off = getFloat(b, off)
	rec.State.AngVel[0], off = getFloat(b, off)
	rec.State.AngVel[1], off = getFloat(b, off)
	rec.State.AngVel[2], off = getFloat(b, off)
	rec.Setpoint.Pos[0], off = getFloat(b, off)
	rec.Setpoint.Pos[1], off = getFloat(b, off)
	rec.Setpoint.Pos[2], off = getFloat(b, off)
	rec.Setpoint.Yaw, off = getFloat(b, off)
	rec.Setpoint.Surge, off = getFloat(b, off)
	rec.Setpoint.YawRate, off = getFloat(b, off)
	for i := 0; i < 6; i++ {
		rec.Wrench[i], off = getFloat(b, off)
	}
	rec.Forces = make([]float64, n)
	for i := 0; i < n; i++ {
		rec.Forces[i], off = getFloat(b, off)
	}
	rec.State.Stamp = rec.Stamp
	return rec
}

func getFloat(b []byte, off int) (float64, int) {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:])), off + 8
}

// Duration returns the wall time covered by the log.
func (p *Parser) Duration() time.Duration {
	if len(p.Records) < 2 {
		return 0
	}
	return p.Records[len(p.Records)-1].Stamp.Sub(p.Records[0].Stamp)
}
