package alloc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gca-engine/config"
)

// Thruster is one actuator in the allocation problem: a unit force
// direction and mounting position in the body frame, force bounds and an
// effort weight (higher weight means the solver spends that thruster less).
type Thruster struct {
	Name   string
	Pos    [3]float64
	Dir    [3]float64
	Min    float64
	Max    float64
	Weight float64
}

// Config is the immutable thruster configuration: the 6xN matrix mapping
// per-thruster forces to the body wrench, plus bounds and solver tuning.
// Built once at startup and shared read-only.
type Config struct {
	Thrusters []Thruster
	B         *mat.Dense // 6 x N: rows 0-2 force, rows 3-5 moment
	Damping   float64
	MaxIter   int
}

// NewConfig validates the thruster specs and assembles the configuration
// matrix. Direction vectors are normalized; the moment rows are r x d.
func NewConfig(specs []config.ThrusterSpec, ac config.AllocConfig) (*Config, error) {
	n := len(specs)
	if n == 0 {
		return nil, fmt.Errorf("no thrusters")
	}

	cfg := &Config{
		Thrusters: make([]Thruster, n),
		B:         mat.NewDense(6, n, nil),
		Damping:   ac.Damping,
		MaxIter:   ac.MaxIterations,
	}

	for i, s := range specs {
		norm := math.Sqrt(s.Dir[0]*s.Dir[0] + s.Dir[1]*s.Dir[1] + s.Dir[2]*s.Dir[2])
		if norm < 1e-9 {
			return nil, fmt.Errorf("thruster %d (%s): zero direction", i, s.Name)
		}
		d := [3]float64{s.Dir[0] / norm, s.Dir[1] / norm, s.Dir[2] / norm}

		w := s.Weight
		if w <= 0 {
			w = 1
		}
		t := Thruster{
			Name:   s.Name,
			Pos:    s.Pos,
			Dir:    d,
			Min:    s.MinForce,
			Max:    s.MaxForce,
			Weight: w,
		}
		if t.Max <= t.Min {
			return nil, fmt.Errorf("thruster %d (%s): empty force interval", i, s.Name)
		}
		cfg.Thrusters[i] = t

		// force contribution
		cfg.B.Set(0, i, d[0])
		cfg.B.Set(1, i, d[1])
		cfg.B.Set(2, i, d[2])
		// moment contribution r x d
		cfg.B.Set(3, i, s.Pos[1]*d[2]-s.Pos[2]*d[1])
		cfg.B.Set(4, i, s.Pos[2]*d[0]-s.Pos[0]*d[2])
		cfg.B.Set(5, i, s.Pos[0]*d[1]-s.Pos[1]*d[0])
	}
	return cfg, nil
}

// N returns the thruster count.
func (c *Config) N() int { return len(c.Thrusters) }

// Clamp limits a force value to thruster i's bounds.
func (c *Config) Clamp(i int, f float64) float64 {
	t := c.Thrusters[i]
	if f > t.Max {
		return t.Max
	}
	if f < t.Min {
		return t.Min
	}
	return f
}
