package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gca-engine/alloc"
	"gca-engine/estimator"
	"gca-engine/vehicle"
)

// SimSource closes the loop in the SIMULATED context: it integrates a
// trivial first-order rigid-body response to the allocated thrust and
// emits the same IMU/DVL/depth samples the hardware boundary would. It is
// a boundary collaborator, not a vehicle model; hydrodynamics stay out of
// scope.
type SimSource struct {
	cfg  *alloc.Config
	cmds <-chan vehicle.ThrusterCommand
	out  chan estimator.Sample
	log  zerolog.Logger

	rateHz float64
	noise  float64
	rng    *rand.Rand

	mu     sync.Mutex
	forces []float64

	// truth state, body velocities
	pos    [3]float64
	rpy    [3]float64
	vel    [3]float64
	angVel [3]float64
}

// plant coefficients for the simulated response
const (
	simMass     = 30.9
	simInertia  = 5.0
	simLinDamp  = 8.0
	simAngDamp  = 4.0
	simHeaveRes = 12.0 // extra vertical drag
)

func NewSimSource(cfg *alloc.Config, cmds <-chan vehicle.ThrusterCommand, rateHz, noise float64, log zerolog.Logger) *SimSource {
	return &SimSource{
		cfg:    cfg,
		cmds:   cmds,
		out:    make(chan estimator.Sample, 256),
		log:    log.With().Str("component", "sensor-sim").Logger(),
		rateHz: rateHz,
		noise:  noise,
		rng:    rand.New(rand.NewSource(1)),
		forces: make([]float64, cfg.N()),
	}
}

func (s *SimSource) Samples() <-chan estimator.Sample { return s.out }

// Truth returns the simulated ground-truth pose and velocities.
func (s *SimSource) Truth() (pos, rpy, vel [3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.rpy, s.vel
}

func (s *SimSource) Run(ctx context.Context) error {
	dt := 1.0 / s.rateHz
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	s.log.Info().Float64("rate_hz", s.rateHz).Msg("simulated sensors running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.cmds:
			s.mu.Lock()
			copy(s.forces, cmd.Forces)
			s.mu.Unlock()
		case now := <-ticker.C:
			s.step(dt)
			s.emit(now)
		}
	}
}

func (s *SimSource) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// wrench from the current thruster forces
	var tau [6]float64
	for r := 0; r < 6; r++ {
		for i, f := range s.forces {
			tau[r] += s.cfg.B.At(r, i) * f
		}
	}

	// first-order velocity response with linear damping
	s.vel[0] += (tau[0] - simLinDamp*s.vel[0]) / simMass * dt
	s.vel[1] += (tau[1] - simLinDamp*s.vel[1]) / simMass * dt
	s.vel[2] += (tau[2] - simHeaveRes*s.vel[2]) / simMass * dt
	for i := 0; i < 3; i++ {
		s.angVel[i] += (tau[3+i] - simAngDamp*s.angVel[i]) / simInertia * dt
	}

	// propagate pose; roll/pitch stay near zero for this plant so the
	// flat-yaw rotation suffices
	cy := math.Cos(s.rpy[2])
	sy := math.Sin(s.rpy[2])
	s.pos[0] += (cy*s.vel[0] - sy*s.vel[1]) * dt
	s.pos[1] += (sy*s.vel[0] + cy*s.vel[1]) * dt
	s.pos[2] += s.vel[2] * dt
	for i := 0; i < 3; i++ {
		s.rpy[i] += s.angVel[i] * dt
	}
	s.rpy[2] = vehicle.WrapPi(s.rpy[2])
}

func (s *SimSource) emit(now time.Time) {
	s.mu.Lock()
	imu := estimator.ImuSample{
		Stamp: now, Valid: true,
		Roll:  s.rpy[0] + s.jitter(),
		Pitch: s.rpy[1] + s.jitter(),
		Yaw:   s.rpy[2] + s.jitter(),
		Rates: [3]float64{s.angVel[0] + s.jitter(), s.angVel[1] + s.jitter(), s.angVel[2] + s.jitter()},
	}
	dvl := estimator.DvlSample{
		Stamp: now, Valid: true,
		Vel: [3]float64{s.vel[0] + s.jitter(), s.vel[1] + s.jitter(), s.vel[2] + s.jitter()},
	}
	depth := estimator.DepthSample{Stamp: now, Valid: true, Depth: s.pos[2] + s.jitter()}
	s.mu.Unlock()

	for _, sample := range []estimator.Sample{{IMU: &imu}, {DVL: &dvl}, {Depth: &depth}} {
		select {
		case s.out <- sample:
		default:
		}
	}
}

func (s *SimSource) jitter() float64 {
	if s.noise <= 0 {
		return 0
	}
	return s.rng.NormFloat64() * s.noise
}
