package vehicle

import "fmt"

// Fault identifies a degradation or failure surfaced to the mode arbiter.
// Local degradation (staleness, partial allocation) stays inside the owning
// component as a status flag; only cross-cutting conditions become Faults.
type Fault int

const (
	FaultNone Fault = iota
	// FaultSensorStale: no fresh measurement within the staleness threshold;
	// the estimator degrades to prediction-only output.
	FaultSensorStale
	// FaultSensorDropout: dropout persisted beyond the second threshold;
	// the arbiter forces the safe state.
	FaultSensorDropout
	// FaultNumeric: a non-finite wrench or state; fatal to the cycle, the
	// previous safe output is held.
	FaultNumeric
	// FaultAllocInfeasible: bounds could not be met even after
	// redistribution; the partial command was still emitted.
	FaultAllocInfeasible
	// FaultTransitionRejected: an invalid mode transition request was
	// ignored and reported.
	FaultTransitionRejected
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "NONE"
	case FaultSensorStale:
		return "SENSOR_STALE"
	case FaultSensorDropout:
		return "SENSOR_FAULT"
	case FaultNumeric:
		return "NUMERIC_FAULT"
	case FaultAllocInfeasible:
		return "ALLOCATION_INFEASIBLE"
	case FaultTransitionRejected:
		return "MODE_TRANSITION_REJECTED"
	default:
		return fmt.Sprintf("Fault(%d)", int(f))
	}
}
