package vehicle

import "fmt"

// Context selects where sensor data comes from and where thruster commands
// go. It is fixed at startup for the process lifetime.
type Context int

const (
	ContextReal Context = iota + 1
	ContextSimulated
)

func (c Context) String() string {
	switch c {
	case ContextReal:
		return "REAL"
	case ContextSimulated:
		return "SIMULATED"
	default:
		return fmt.Sprintf("Context(%d)", int(c))
	}
}

// ParseContext maps a configuration string onto a Context.
func ParseContext(s string) (Context, error) {
	switch s {
	case "real", "REAL":
		return ContextReal, nil
	case "simulated", "SIMULATED", "sim":
		return ContextSimulated, nil
	default:
		return 0, fmt.Errorf("unknown vehicle_context %q", s)
	}
}

// Phase is the active guidance/control law.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePathFollowing
	PhaseStationKeeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePathFollowing:
		return "PATH_FOLLOWING"
	case PhaseStationKeeping:
		return "STATION_KEEPING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Mode is the process-wide operating mode. The arbiter is the only writer;
// every cycle receives its own immutable copy so a transition can never be
// observed mid-computation.
type Mode struct {
	Context Context
	Phase   Phase
	// Safe is raised by the arbiter on a cross-cutting fault: the controller
	// is bypassed and a zero wrench / zero thruster command is emitted.
	Safe bool
}

func (m Mode) String() string {
	s := m.Context.String() + "/" + m.Phase.String()
	if m.Safe {
		s += "/SAFE"
	}
	return s
}
