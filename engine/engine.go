// Package engine runs the pipeline: sensor samples flow into the state
// estimator, and each control cycle chains guidance, control and thrust
// allocation back to back before the command leaves for the thrusters.
// Everything runs on one goroutine so no stage ever observes a
// half-updated mode or state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gca-engine/alloc"
	"gca-engine/arbiter"
	"gca-engine/config"
	"gca-engine/control"
	"gca-engine/estimator"
	"gca-engine/guidance"
	"gca-engine/record"
	"gca-engine/sensor"
	"gca-engine/telemetry"
	"gca-engine/thruster"
	"gca-engine/vehicle"
	"gca-engine/web"
)

// Status is the externally visible pipeline snapshot, serialized for the
// operator surface and mirrored onto the telemetry line.
type Status struct {
	Stamp       time.Time  `json:"stamp"`
	Mode        string     `json:"mode"`
	Safe        bool       `json:"safe"`
	Fault       string     `json:"fault"`
	Pos         [3]float64 `json:"pos"`
	Yaw         float64    `json:"yaw"`
	Vel         [3]float64 `json:"vel"`
	Stale       bool       `json:"stale"`
	Distance    float64    `json:"distance_to_goal"`
	Reached     bool       `json:"reached"`
	CrossTrack  float64    `json:"cross_track"`
	Wrench      [6]float64 `json:"wrench"`
	Forces      []float64  `json:"forces"`
	AllocStatus string     `json:"alloc_status"`
	Cycles      uint64     `json:"cycles"`
	Rejected    uint64     `json:"rejected_samples"`
}

type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	est   *estimator.Estimator
	guid  *guidance.Guidance
	ctrl  *control.Controller
	alloc *alloc.Allocator
	arb   *arbiter.Arbiter

	src sensor.Source
	out thruster.Output
	tel *telemetry.Sender
	rec *record.Writer
	hub *web.Hub

	mu   sync.Mutex
	snap Status

	state  vehicle.VehicleState
	sp     vehicle.Setpoint
	wrench vehicle.Wrench
	cmd    vehicle.ThrusterCommand
	fault  vehicle.Fault
	cycles uint64
}

// Options carries the optional boundary collaborators; nil members are
// simply not driven.
type Options struct {
	Telemetry *telemetry.Sender
	Recorder  *record.Writer
	Hub       *web.Hub
}

func New(cfg *config.Config, ctx vehicle.Context, src sensor.Source, out thruster.Output, opts Options, log zerolog.Logger) (*Engine, error) {
	ac, err := alloc.NewConfig(cfg.Thrusters, cfg.Alloc)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:   cfg,
		log:   log.With().Str("component", "engine").Logger(),
		est:   estimator.New(cfg.EKF, cfg.Staleness, log),
		guid:  guidance.New(cfg.LOS, cfg.Rates.ControlHz),
		ctrl:  control.New(cfg.Gains),
		alloc: alloc.New(ac),
		arb:   arbiter.New(ctx, log),
		src:   src,
		out:   out,
		tel:   opts.Telemetry,
		rec:   opts.Recorder,
		hub:   opts.Hub,
	}, nil
}

// SubmitTarget queues an operator target for the next cycle boundary.
func (e *Engine) SubmitTarget(t vehicle.Target) error {
	if f := e.arb.SubmitTarget(t); f != vehicle.FaultNone {
		return errors.New("target rejected: " + f.String())
	}
	return nil
}

// SetSafe drives the operator safe latch.
func (e *Engine) SetSafe(on bool) error {
	e.arb.SetSafe(on)
	return nil
}

// Snapshot returns the latest status for the operator surface.
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Run drives the tickers until the context is cancelled. The sensor
// source must already be running.
func (e *Engine) Run(ctx context.Context) error {
	estTick := time.NewTicker(hzToPeriod(e.cfg.Rates.EstimatorHz))
	ctrlTick := time.NewTicker(hzToPeriod(e.cfg.Rates.ControlHz))
	telTick := time.NewTicker(hzToPeriod(e.cfg.Rates.TelemetryHz))
	defer estTick.Stop()
	defer ctrlTick.Stop()
	defer telTick.Stop()

	e.log.Info().
		Float64("estimator_hz", e.cfg.Rates.EstimatorHz).
		Float64("control_hz", e.cfg.Rates.ControlHz).
		Msg("pipeline running")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case s := <-e.src.Samples():
			e.est.Ingest(s)
		case now := <-estTick.C:
			e.state, e.fault = e.est.Tick(now)
		case now := <-ctrlTick.C:
			e.controlCycle(now)
		case now := <-telTick.C:
			e.publish(now)
		}
	}
}

// controlCycle is one guidance-control-allocation pass followed by the
// mode arbitration boundary.
func (e *Engine) controlCycle(now time.Time) {
	mode := e.arb.Mode()

	e.sp = e.guid.Update(mode.Phase, e.state, now)

	wrench, cfault := e.ctrl.Update(mode, e.sp, e.state, now)
	cmd, afault := e.alloc.Allocate(wrench, now)

	fault := worst(e.fault, cfault, afault)

	if err := e.out.Write(context.Background(), cmd); err != nil {
		e.log.Warn().Err(err).Msg("thruster write failed")
	}
	e.wrench = wrench
	e.cmd = cmd
	e.cycles++

	if e.rec != nil {
		err := e.rec.Write(record.Record{
			Stamp:    now,
			Mode:     mode,
			Fault:    fault,
			State:    e.state,
			Setpoint: e.sp,
			Wrench:   wrench,
			Forces:   cmd.Forces,
			Status:   cmd.Status,
		})
		if err != nil {
			e.log.Warn().Err(err).Msg("cycle log write failed")
		}
	}

	// cycle boundary: the arbiter is the only place mode changes
	newMode, tr := e.arb.Apply(e.sp.Reached, fault)
	if tr != nil {
		e.applyTransition(newMode, tr)
	}

	e.updateSnapshot(now, newMode, fault)
}

func (e *Engine) applyTransition(mode vehicle.Mode, tr *arbiter.Transition) {
	switch {
	case tr.Target != nil:
		e.guid.SetTarget(*tr.Target, e.state)
	case tr.HoldHere:
		e.guid.HoldHere(e.state)
	}
	e.ctrl.Reset()
}

func (e *Engine) updateSnapshot(now time.Time, mode vehicle.Mode, fault vehicle.Fault) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = Status{
		Stamp:       now,
		Mode:        mode.String(),
		Safe:        mode.Safe,
		Fault:       fault.String(),
		Pos:         e.state.Pos,
		Yaw:         e.state.Yaw,
		Vel:         e.state.Vel,
		Stale:       e.state.Stale,
		Distance:    e.sp.DistanceToGoal,
		Reached:     e.sp.Reached,
		CrossTrack:  e.guid.CrossTrack(e.state),
		Wrench:      [6]float64(e.wrench),
		Forces:      e.cmd.Forces,
		AllocStatus: e.cmd.Status.String(),
		Cycles:      e.cycles,
		Rejected:    e.est.Rejected(),
	}
}

func (e *Engine) publish(now time.Time) {
	mode := e.arb.Mode()
	if e.tel != nil {
		e.tel.Send(telemetry.FormatStatus(now, mode, e.fault, e.state, e.sp, e.cmd.Status), telemetry.FlagStatus)
	}
	if e.hub != nil {
		if b, err := json.Marshal(e.Snapshot()); err == nil {
			e.hub.Broadcast(b)
		}
	}
}

// shutdown sends one zero command so the thrusters do not hold the last
// nonzero forces after the process exits.
func (e *Engine) shutdown() {
	zero := vehicle.ThrusterCommand{
		Stamp:  time.Now(),
		Forces: make([]float64, e.alloc.Config().N()),
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.out.Write(ctx, zero); err != nil {
		e.log.Warn().Err(err).Msg("zeroing thrusters failed")
	}
}

// worst picks the fault the arbiter must react to, in escalation order.
func worst(faults ...vehicle.Fault) vehicle.Fault {
	rank := func(f vehicle.Fault) int {
		switch f {
		case vehicle.FaultNumeric:
			return 5
		case vehicle.FaultSensorDropout:
			return 4
		case vehicle.FaultAllocInfeasible:
			return 3
		case vehicle.FaultSensorStale:
			return 2
		case vehicle.FaultTransitionRejected:
			return 1
		default:
			return 0
		}
	}
	best := vehicle.FaultNone
	for _, f := range faults {
		if rank(f) > rank(best) {
			best = f
		}
	}
	return best
}

func hzToPeriod(hz float64) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	return time.Duration(float64(time.Second) / hz)
}
