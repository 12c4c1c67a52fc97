package sim

import "fmt"

// Reason tells why a run stopped.
type Reason int

const (
	// NoMoreEvents means nothing was left to resume.
	NoMoreEvents Reason = iota

	// DurationElapsed means the requested duration was simulated.
	DurationElapsed
)

func (r Reason) String() string {
	switch r {
	case NoMoreEvents:
		return "NoMoreEvents"
	case DurationElapsed:
		return "DurationElapsed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Termination is the normal outcome of Run.
type Termination struct {
	Reason Reason

	// Duration is the requested duration; only meaningful with
	// DurationElapsed.
	Duration VTime

	// Time is the simulated time at which the run stopped.
	Time VTime

	// Pending tells if timeline entries were still waiting at the end.
	Pending bool
}

// Status returns 1 if events remained pending and 0 if the timeline was
// drained.
func (t *Termination) Status() int {
	if t.Pending {
		return 1
	}

	return 0
}

// Message returns the line reported when the run stops.
func (t *Termination) Message() string {
	switch t.Reason {
	case DurationElapsed:
		return fmt.Sprintf("StopSimulation: Simulated for duration %d",
			t.Duration)
	default:
		return "StopSimulation: No more events"
	}
}
