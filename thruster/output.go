// Package thruster carries allocated per-thruster forces across the
// actuation boundary. The REAL context speaks SocketCAN; the SIMULATED
// context loops commands back into the simulated sensor source.
package thruster

import (
	"context"

	"gca-engine/vehicle"
)

// Output delivers one thruster command per control cycle.
type Output interface {
	Write(ctx context.Context, cmd vehicle.ThrusterCommand) error
	Close() error
}
