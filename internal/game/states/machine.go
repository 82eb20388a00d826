package states

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

const defaultMaxHistory = 256

// Transition represents a phase change in the history
type Transition struct {
	From      EpisodePhase
	To        EpisodePhase
	Timestamp time.Time
	Reason    string
}

// StateMachine tracks the episode phase of one engine. Like the engine that
// owns it, it is not safe for concurrent use.
type StateMachine struct {
	envID          string
	currentPhase   EpisodePhase
	history        []Transition
	maxHistorySize int
	publisher      events.Publisher
	logger         zerolog.Logger
}

// NewStateMachine creates a machine in PhaseActive. publisher may be nil.
func NewStateMachine(envID string, publisher events.Publisher, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		envID:          envID,
		currentPhase:   PhaseActive,
		history:        make([]Transition, 0, 16),
		maxHistorySize: defaultMaxHistory,
		publisher:      publisher,
		logger:         logger.With().Str("component", "state_machine").Logger(),
	}
}

// CurrentPhase returns the current episode phase
func (sm *StateMachine) CurrentPhase() EpisodePhase {
	return sm.currentPhase
}

// TransitionTo moves to targetPhase, recording the change and publishing a
// state.transition event.
func (sm *StateMachine) TransitionTo(targetPhase EpisodePhase, reason string) error {
	if !sm.currentPhase.CanTransitionTo(targetPhase) {
		return fmt.Errorf("invalid transition from %s to %s", sm.currentPhase, targetPhase)
	}

	previousPhase := sm.currentPhase
	sm.currentPhase = targetPhase
	sm.addToHistory(Transition{
		From:      previousPhase,
		To:        targetPhase,
		Timestamp: time.Now(),
		Reason:    reason,
	})

	if sm.publisher != nil {
		sm.publisher.Publish(events.NewStateTransitionEvent(
			sm.envID,
			previousPhase.String(),
			targetPhase.String(),
			reason,
		))
	}

	sm.logger.Debug().
		Str("from_phase", previousPhase.String()).
		Str("to_phase", targetPhase.String()).
		Str("reason", reason).
		Msg("State transition completed")

	return nil
}

// addToHistory adds a transition to the history, maintaining max size
func (sm *StateMachine) addToHistory(transition Transition) {
	sm.history = append(sm.history, transition)

	if len(sm.history) > sm.maxHistorySize {
		sm.history = sm.history[len(sm.history)-sm.maxHistorySize:]
	}
}

// GetHistory returns a copy of the transition history
func (sm *StateMachine) GetHistory() []Transition {
	history := make([]Transition, len(sm.history))
	copy(history, sm.history)
	return history
}

// SetMaxHistory bounds how many transitions are retained
func (sm *StateMachine) SetMaxHistory(n int) {
	if n <= 0 {
		n = defaultMaxHistory
	}
	sm.maxHistorySize = n
	if len(sm.history) > n {
		sm.history = sm.history[len(sm.history)-n:]
	}
}
