// Package arbiter owns the operating mode. It is the single writer: every
// other component receives an immutable Mode snapshot per cycle, and
// transitions are applied only between control cycles so no computation
// ever observes a half-switched mode.
//
// The state machine is small by design:
//
//	IDLE            -> PATH_FOLLOWING   on a transit target
//	IDLE            -> STATION_KEEPING  on a hold target
//	PATH_FOLLOWING  -> STATION_KEEPING  on guidance-reported completion
//	STATION_KEEPING -> PATH_FOLLOWING   on a new transit target
//
// The REAL/SIMULATED context is fixed at startup for the process lifetime.
package arbiter

import (
	"sync"

	"github.com/rs/zerolog"

	"gca-engine/vehicle"
)

// Transition describes what the engine must do after a mode change:
// install a new target, or convert the current pose into a hold.
type Transition struct {
	From     vehicle.Mode
	To       vehicle.Mode
	Target   *vehicle.Target
	HoldHere bool
}

type Arbiter struct {
	log zerolog.Logger

	mu      sync.Mutex
	mode    vehicle.Mode
	pending *vehicle.Target
	opSafe  bool

	lastFault vehicle.Fault
	rejected  uint64
}

func New(ctx vehicle.Context, log zerolog.Logger) *Arbiter {
	return &Arbiter{
		log:  log.With().Str("component", "arbiter").Logger(),
		mode: vehicle.Mode{Context: ctx, Phase: vehicle.PhaseIdle},
	}
}

// Mode returns the current snapshot.
func (a *Arbiter) Mode() vehicle.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// LastFault returns the most recent cross-cutting fault for status
// reporting.
func (a *Arbiter) LastFault() vehicle.Fault {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFault
}

// SubmitTarget queues a navigation target. It may be called from any
// goroutine (the operator interface); the target takes effect at the next
// cycle boundary. A target submitted while the vehicle is in the fault
// safe state is rejected and reported, not queued.
func (a *Arbiter) SubmitTarget(t vehicle.Target) vehicle.Fault {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode.Safe {
		a.rejected++
		a.lastFault = vehicle.FaultTransitionRejected
		a.log.Warn().Str("mode", a.mode.String()).Msg("target rejected in safe state")
		return vehicle.FaultTransitionRejected
	}
	cp := t
	a.pending = &cp
	return vehicle.FaultNone
}

// SetSafe raises or lowers the operator safe latch. While raised, the
// safe state persists regardless of fault recovery. Takes effect at the
// next cycle boundary.
func (a *Arbiter) SetSafe(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opSafe = on
	a.log.Info().Bool("safe", on).Msg("operator safe latch")
}

// Apply runs at the cycle boundary. It consumes the queued target, reacts
// to guidance completion and latches or clears the safe state from the
// cycle's fault. The returned transition, if any, tells the engine what to
// rewire before the next cycle starts.
func (a *Arbiter) Apply(reached bool, fault vehicle.Fault) (vehicle.Mode, *Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()

	from := a.mode

	switch fault {
	case vehicle.FaultSensorDropout, vehicle.FaultNumeric:
		a.lastFault = fault
		if !a.mode.Safe {
			a.mode.Safe = true
			a.log.Error().Str("fault", fault.String()).Msg("entering safe state")
			return a.mode, &Transition{From: from, To: a.mode, HoldHere: true}
		}
		return a.mode, nil
	case vehicle.FaultNone:
		if a.mode.Safe && !a.opSafe {
			// fault cleared: hold position until the operator commands
			a.mode.Safe = false
			a.mode.Phase = vehicle.PhaseStationKeeping
			a.log.Info().Msg("fault cleared, holding position")
			return a.mode, &Transition{From: from, To: a.mode, HoldHere: true}
		}
	default:
		// local degradation (stale, partial allocation) is recorded but
		// does not force a transition
		a.lastFault = fault
	}

	if a.opSafe && !a.mode.Safe {
		a.mode.Safe = true
		a.log.Warn().Msg("operator safe latch engaged")
		return a.mode, &Transition{From: from, To: a.mode, HoldHere: true}
	}

	if a.pending != nil {
		t := a.pending
		a.pending = nil
		if t.Hold {
			a.mode.Phase = vehicle.PhaseStationKeeping
		} else {
			a.mode.Phase = vehicle.PhasePathFollowing
		}
		a.log.Info().
			Str("from", from.String()).
			Str("to", a.mode.String()).
			Float64("x", t.X).Float64("y", t.Y).
			Msg("target accepted")
		return a.mode, &Transition{From: from, To: a.mode, Target: t}
	}

	if reached && a.mode.Phase == vehicle.PhasePathFollowing {
		a.mode.Phase = vehicle.PhaseStationKeeping
		a.log.Info().Msg("target reached, station keeping")
		return a.mode, &Transition{From: from, To: a.mode, HoldHere: true}
	}

	return a.mode, nil
}

// Rejected returns the count of rejected transition requests.
func (a *Arbiter) Rejected() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}
