package supervisor

// Phase of the mission as seen by the supervisor.
type Phase int

const (
	PhaseAwaitingStart Phase = iota
	PhasePlanning
	PhaseAirborne
	PhaseLanded
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingStart:
		return "awaiting-start"
	case PhasePlanning:
		return "planning"
	case PhaseAirborne:
		return "airborne"
	case PhaseLanded:
		return "landed"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}

// Phases lists every phase in order.
var Phases = []Phase{PhaseAwaitingStart, PhasePlanning, PhaseAirborne, PhaseLanded, PhaseAborted}
