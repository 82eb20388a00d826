package envserver

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

// Update types sent on WatchEnvironment besides engine event types
const UpdateTypeSnapshot = "snapshot"

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrEnvNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrAtCapacity):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, core.ErrInvalidAction),
		errors.Is(err, core.ErrInvalidConfiguration),
		errors.Is(err, core.ErrInvalidBoard),
		errors.Is(err, errMalformedRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrExperienceDisabled),
		errors.Is(err, experience.ErrBufferClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// eventToStruct encodes an engine event for stream clients
func eventToStruct(event events.Event) (*structpb.Struct, error) {
	m := map[string]any{
		"type":      event.Type(),
		"env_id":    event.EnvID(),
		"timestamp": event.Timestamp().UTC().Format(time.RFC3339Nano),
	}
	switch e := event.(type) {
	case *events.EpisodeStartedEvent:
		m["episode"] = e.Metadata.Episode
		m["size"] = e.Size
		m["seeded"] = e.Seeded
	case *events.MoveAppliedEvent:
		m["episode"] = e.Metadata.Episode
		m["step"] = e.Metadata.Step
		m["action"] = e.Action
		m["reward"] = e.Reward
		m["changed"] = e.Changed
	case *events.TileSpawnedEvent:
		m["episode"] = e.Metadata.Episode
		m["step"] = e.Metadata.Step
		m["x"] = e.X
		m["y"] = e.Y
		m["value"] = e.Value
	case *events.ActionRejectedEvent:
		m["episode"] = e.Metadata.Episode
		m["step"] = e.Metadata.Step
		m["action"] = e.Action
		m["reason"] = e.Reason
	case *events.EpisodeTerminatedEvent:
		m["episode"] = e.Metadata.Episode
		m["step"] = e.Metadata.Step
		m["score"] = e.Score
		m["max_tile"] = e.MaxTile
	case *events.StateTransitionEvent:
		m["from_phase"] = e.FromPhase
		m["to_phase"] = e.ToPhase
		m["reason"] = e.Reason
	default:
		return nil, fmt.Errorf("unsupported event %T", event)
	}
	return structpb.NewStruct(m)
}

// snapshotStruct wraps a state response as a stream update
func snapshotStruct(state GetStateResponse) (*structpb.Struct, error) {
	s, err := state.ToStruct()
	if err != nil {
		return nil, err
	}
	s.Fields["type"] = structpb.NewStringValue(UpdateTypeSnapshot)
	s.Fields["timestamp"] = structpb.NewStringValue(time.Now().UTC().Format(time.RFC3339Nano))
	return s, nil
}
