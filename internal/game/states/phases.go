package states

import "fmt"

// EpisodePhase is the lifecycle phase of a single episode
type EpisodePhase int

const (
	// PhaseActive - at least one move may still change the board
	PhaseActive EpisodePhase = iota

	// PhaseTerminated - board full with no adjacent equal pair; sticky until reset
	PhaseTerminated
)

// String returns the string representation of an EpisodePhase
func (p EpisodePhase) String() string {
	switch p {
	case PhaseActive:
		return "Active"
	case PhaseTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsTerminal returns true if the phase ends the episode
func (p EpisodePhase) IsTerminal() bool {
	return p == PhaseTerminated
}

// CanReceiveActions returns true if steps mutate the board in this phase
func (p EpisodePhase) CanReceiveActions() bool {
	return p == PhaseActive
}

// AllowedTransitions returns the valid phases this phase can transition to.
// Active -> Active is a reset in the middle of an episode.
func (p EpisodePhase) AllowedTransitions() []EpisodePhase {
	switch p {
	case PhaseActive:
		return []EpisodePhase{PhaseActive, PhaseTerminated}
	case PhaseTerminated:
		return []EpisodePhase{PhaseActive}
	default:
		return nil
	}
}

// CanTransitionTo checks if a transition from this phase to the target phase is allowed
func (p EpisodePhase) CanTransitionTo(target EpisodePhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a string to an EpisodePhase
func ParsePhase(s string) (EpisodePhase, error) {
	switch s {
	case "Active":
		return PhaseActive, nil
	case "Terminated":
		return PhaseTerminated, nil
	default:
		return PhaseActive, fmt.Errorf("unknown episode phase %q", s)
	}
}
