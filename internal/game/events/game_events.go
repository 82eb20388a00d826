package events

// Event type constants
const (
	TypeEpisodeStarted    = "episode.started"
	TypeEpisodeTerminated = "episode.terminated"
	TypeMoveApplied       = "move.applied"
	TypeTileSpawned       = "tile.spawned"
	TypeActionRejected    = "action.rejected"
	TypeStateTransition   = "state.transition"
)

// EpisodeStartedEvent is published on every reset
type EpisodeStartedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Size     int
	Seeded   bool
	Seed     int64
}

func NewEpisodeStartedEvent(envID string, episode, size int, seeded bool, seed int64) *EpisodeStartedEvent {
	return &EpisodeStartedEvent{
		BaseEvent: newBase(TypeEpisodeStarted, envID),
		Metadata:  EventMetadata{Episode: episode},
		Size:      size,
		Seeded:    seeded,
		Seed:      seed,
	}
}

// MoveAppliedEvent is published after a slide, including no-op slides
type MoveAppliedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Action   int
	Reward   int
	Changed  bool
}

func NewMoveAppliedEvent(envID string, episode, step, action, reward int, changed bool) *MoveAppliedEvent {
	return &MoveAppliedEvent{
		BaseEvent: newBase(TypeMoveApplied, envID),
		Metadata:  EventMetadata{Episode: episode, Step: step},
		Action:    action,
		Reward:    reward,
		Changed:   changed,
	}
}

// TileSpawnedEvent is published whenever a new tile is placed
type TileSpawnedEvent struct {
	BaseEvent
	Metadata EventMetadata
	X, Y     int
	Value    int
}

func NewTileSpawnedEvent(envID string, episode, step, x, y, value int) *TileSpawnedEvent {
	return &TileSpawnedEvent{
		BaseEvent: newBase(TypeTileSpawned, envID),
		Metadata:  EventMetadata{Episode: episode, Step: step},
		X:         x,
		Y:         y,
		Value:     value,
	}
}

// ActionRejectedEvent is published when a step is refused before any mutation
type ActionRejectedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Action   int
	Reason   string
}

func NewActionRejectedEvent(envID string, episode, step, action int, reason string) *ActionRejectedEvent {
	return &ActionRejectedEvent{
		BaseEvent: newBase(TypeActionRejected, envID),
		Metadata:  EventMetadata{Episode: episode, Step: step},
		Action:    action,
		Reason:    reason,
	}
}

// EpisodeTerminatedEvent is published once, on the step that leaves no legal move
type EpisodeTerminatedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Score    int
	MaxTile  int
}

func NewEpisodeTerminatedEvent(envID string, episode, step, score, maxTile int) *EpisodeTerminatedEvent {
	return &EpisodeTerminatedEvent{
		BaseEvent: newBase(TypeEpisodeTerminated, envID),
		Metadata:  EventMetadata{Episode: episode, Step: step},
		Score:     score,
		MaxTile:   maxTile,
	}
}

// StateTransitionEvent is published when the episode state machine changes phase
type StateTransitionEvent struct {
	BaseEvent
	FromPhase string
	ToPhase   string
	Reason    string
}

func NewStateTransitionEvent(envID, fromPhase, toPhase, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, envID),
		FromPhase: fromPhase,
		ToPhase:   toPhase,
		Reason:    reason,
	}
}
