package thruster

import (
	"context"

	"gca-engine/vehicle"
)

// SimOutput feeds commands into the simulated sensor source. Writes never
// block: if the simulator has not drained the previous command yet, the
// newest one replaces it.
type SimOutput struct {
	ch chan vehicle.ThrusterCommand
}

func NewSimOutput() *SimOutput {
	return &SimOutput{ch: make(chan vehicle.ThrusterCommand, 1)}
}

// Commands is consumed by the simulated sensor source.
func (o *SimOutput) Commands() <-chan vehicle.ThrusterCommand { return o.ch }

func (o *SimOutput) Write(_ context.Context, cmd vehicle.ThrusterCommand) error {
	select {
	case o.ch <- cmd:
	default:
		select {
		case <-o.ch:
		default:
		}
		o.ch <- cmd
	}
	return nil
}

func (o *SimOutput) Close() error { return nil }
