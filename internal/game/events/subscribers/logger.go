package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

// LoggerSubscriber logs environment events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // If non-nil, only log these event types
	devMode         bool            // If true, log full event details
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (nil means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// SetDevMode enables or disables development mode logging
func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent processes an event by logging it
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	logEvent := ls.logger.WithLevel(ls.logLevel).
		Str("event_type", event.Type()).
		Str("env_id", event.EnvID()).
		Time("event_time", event.Timestamp())

	switch e := event.(type) {
	case *events.EpisodeStartedEvent:
		logEvent.
			Int("episode", e.Metadata.Episode).
			Int("size", e.Size).
			Bool("seeded", e.Seeded)
		if e.Seeded {
			logEvent.Int64("seed", e.Seed)
		}

	case *events.MoveAppliedEvent:
		logEvent.
			Int("step", e.Metadata.Step).
			Int("action", e.Action).
			Int("reward", e.Reward).
			Bool("changed", e.Changed)

	case *events.TileSpawnedEvent:
		logEvent.
			Int("step", e.Metadata.Step).
			Int("x", e.X).
			Int("y", e.Y).
			Int("value", e.Value)

	case *events.ActionRejectedEvent:
		logEvent.
			Int("action", e.Action).
			Str("reason", e.Reason)

	case *events.EpisodeTerminatedEvent:
		logEvent.
			Int("episode", e.Metadata.Episode).
			Int("steps", e.Metadata.Step).
			Int("score", e.Score).
			Int("max_tile", e.MaxTile)

	case *events.StateTransitionEvent:
		logEvent.
			Str("from_phase", e.FromPhase).
			Str("to_phase", e.ToPhase).
			Str("reason", e.Reason)
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Environment event")
}
