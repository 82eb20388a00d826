package envserver

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

var errMalformedRequest = errors.New("malformed request")

// CreateEnvironmentRequest asks for a new environment. Zero Size means the
// server default.
type CreateEnvironmentRequest struct {
	Size int
	Seed *int64
}

type CreateEnvironmentResponse struct {
	EnvID        string
	Observation  game.Observation
	LegalActions [core.NumActions]bool
}

type ResetRequest struct {
	EnvID string
	Seed  *int64
}

type ResetResponse struct {
	Observation  game.Observation
	LegalActions [core.NumActions]bool
	Episode      int
}

// StepRequest applies Action to EnvID. A non-empty IdempotencyKey makes a
// retried request return the first response instead of stepping again.
type StepRequest struct {
	EnvID          string
	Action         int
	IdempotencyKey string
}

type StepResponse struct {
	Observation  game.Observation
	Reward       float64
	Terminated   bool
	Changed      bool
	Score        int
	LegalActions [core.NumActions]bool
}

type GetStateRequest struct {
	EnvID string
}

type GetStateResponse struct {
	EnvID        string
	Observation  game.Observation
	Score        int
	Steps        int
	Episode      int
	MaxTile      int
	Terminated   bool
	Render       string
	LegalActions [core.NumActions]bool
}

type CloseEnvironmentRequest struct {
	EnvID string
}

// SampleExperienceRequest draws up to N transitions without replacement
// from the environment's replay buffer. Tensors asks for the encoded
// network inputs alongside the raw boards.
type SampleExperienceRequest struct {
	EnvID   string
	N       int
	Seed    *int64
	Tensors bool
}

// TransitionTensors is the network-ready encoding of one sampled transition
type TransitionTensors struct {
	State      []float32
	NextState  []float32
	ActionMask []float32
	Features   map[string]float32
}

// SampleExperienceResponse holds the sample. Tensors, when requested, is
// parallel to Transitions and every tensor has TensorShape.
type SampleExperienceResponse struct {
	Transitions []experience.Transition
	Tensors     []TransitionTensors
	TensorShape []int32
}

type WatchEnvironmentRequest struct {
	EnvID string
}

// Encoders

func (r CreateEnvironmentRequest) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{}
	if r.Size != 0 {
		m["size"] = r.Size
	}
	putSeed(m, r.Seed)
	return structpb.NewStruct(m)
}

func (r CreateEnvironmentResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env_id":        r.EnvID,
		"observation":   observationToAny(r.Observation),
		"legal_actions": maskToAny(r.LegalActions),
	})
}

func (r ResetRequest) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{"env_id": r.EnvID}
	putSeed(m, r.Seed)
	return structpb.NewStruct(m)
}

func (r ResetResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"observation":   observationToAny(r.Observation),
		"legal_actions": maskToAny(r.LegalActions),
		"episode":       r.Episode,
	})
}

func (r StepRequest) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{"env_id": r.EnvID, "action": r.Action}
	if r.IdempotencyKey != "" {
		m["idempotency_key"] = r.IdempotencyKey
	}
	return structpb.NewStruct(m)
}

func (r StepResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"observation":   observationToAny(r.Observation),
		"reward":        r.Reward,
		"terminated":    r.Terminated,
		"changed":       r.Changed,
		"score":         r.Score,
		"legal_actions": maskToAny(r.LegalActions),
	})
}

func (r GetStateRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"env_id": r.EnvID})
}

func (r GetStateResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env_id":        r.EnvID,
		"observation":   observationToAny(r.Observation),
		"score":         r.Score,
		"steps":         r.Steps,
		"episode":       r.Episode,
		"max_tile":      r.MaxTile,
		"terminated":    r.Terminated,
		"render":        r.Render,
		"legal_actions": maskToAny(r.LegalActions),
	})
}

func (r CloseEnvironmentRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"env_id": r.EnvID})
}

func (r SampleExperienceRequest) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{"env_id": r.EnvID, "n": r.N}
	putSeed(m, r.Seed)
	if r.Tensors {
		m["tensors"] = true
	}
	return structpb.NewStruct(m)
}

func (t TransitionTensors) toStruct() (*structpb.Struct, error) {
	features := make(map[string]any, len(t.Features))
	for k, v := range t.Features {
		features[k] = float64(v)
	}
	return structpb.NewStruct(map[string]any{
		"state":       floatsToAny(t.State),
		"next_state":  floatsToAny(t.NextState),
		"action_mask": floatsToAny(t.ActionMask),
		"features":    features,
	})
}

func (r SampleExperienceResponse) ToStruct() (*structpb.Struct, error) {
	list := make([]*structpb.Value, 0, len(r.Transitions))
	for _, t := range r.Transitions {
		s, err := t.ToStruct()
		if err != nil {
			return nil, err
		}
		list = append(list, structpb.NewStructValue(s))
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"transitions": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}
	if len(r.Tensors) == 0 {
		return out, nil
	}

	tensors := make([]*structpb.Value, 0, len(r.Tensors))
	for _, t := range r.Tensors {
		s, err := t.toStruct()
		if err != nil {
			return nil, err
		}
		tensors = append(tensors, structpb.NewStructValue(s))
	}
	shape := make([]*structpb.Value, len(r.TensorShape))
	for i, d := range r.TensorShape {
		shape[i] = structpb.NewNumberValue(float64(d))
	}
	out.Fields["tensors"] = structpb.NewListValue(&structpb.ListValue{Values: tensors})
	out.Fields["tensor_shape"] = structpb.NewListValue(&structpb.ListValue{Values: shape})
	return out, nil
}

func (r WatchEnvironmentRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"env_id": r.EnvID})
}

// Decoders

func ParseCreateEnvironmentRequest(s *structpb.Struct) (CreateEnvironmentRequest, error) {
	size, err := optionalInt(s, "size")
	if err != nil {
		return CreateEnvironmentRequest{}, err
	}
	seed, err := optionalSeed(s)
	if err != nil {
		return CreateEnvironmentRequest{}, err
	}
	return CreateEnvironmentRequest{Size: size, Seed: seed}, nil
}

func ParseCreateEnvironmentResponse(s *structpb.Struct) (CreateEnvironmentResponse, error) {
	obs, err := observationField(s, "observation")
	if err != nil {
		return CreateEnvironmentResponse{}, err
	}
	return CreateEnvironmentResponse{
		EnvID:        s.GetFields()["env_id"].GetStringValue(),
		Observation:  obs,
		LegalActions: maskField(s, "legal_actions"),
	}, nil
}

func ParseResetRequest(s *structpb.Struct) (ResetRequest, error) {
	id, err := requiredEnvID(s)
	if err != nil {
		return ResetRequest{}, err
	}
	seed, err := optionalSeed(s)
	if err != nil {
		return ResetRequest{}, err
	}
	return ResetRequest{EnvID: id, Seed: seed}, nil
}

func ParseResetResponse(s *structpb.Struct) (ResetResponse, error) {
	obs, err := observationField(s, "observation")
	if err != nil {
		return ResetResponse{}, err
	}
	return ResetResponse{
		Observation:  obs,
		LegalActions: maskField(s, "legal_actions"),
		Episode:      int(s.GetFields()["episode"].GetNumberValue()),
	}, nil
}

func ParseStepRequest(s *structpb.Struct) (StepRequest, error) {
	id, err := requiredEnvID(s)
	if err != nil {
		return StepRequest{}, err
	}
	if _, ok := s.GetFields()["action"]; !ok {
		return StepRequest{}, fmt.Errorf("%w: action is required", errMalformedRequest)
	}
	action, err := optionalInt(s, "action")
	if err != nil {
		return StepRequest{}, err
	}
	return StepRequest{
		EnvID:          id,
		Action:         action,
		IdempotencyKey: s.GetFields()["idempotency_key"].GetStringValue(),
	}, nil
}

func ParseStepResponse(s *structpb.Struct) (StepResponse, error) {
	obs, err := observationField(s, "observation")
	if err != nil {
		return StepResponse{}, err
	}
	f := s.GetFields()
	return StepResponse{
		Observation:  obs,
		Reward:       f["reward"].GetNumberValue(),
		Terminated:   f["terminated"].GetBoolValue(),
		Changed:      f["changed"].GetBoolValue(),
		Score:        int(f["score"].GetNumberValue()),
		LegalActions: maskField(s, "legal_actions"),
	}, nil
}

func ParseGetStateRequest(s *structpb.Struct) (GetStateRequest, error) {
	id, err := requiredEnvID(s)
	return GetStateRequest{EnvID: id}, err
}

func ParseGetStateResponse(s *structpb.Struct) (GetStateResponse, error) {
	obs, err := observationField(s, "observation")
	if err != nil {
		return GetStateResponse{}, err
	}
	f := s.GetFields()
	return GetStateResponse{
		EnvID:        f["env_id"].GetStringValue(),
		Observation:  obs,
		Score:        int(f["score"].GetNumberValue()),
		Steps:        int(f["steps"].GetNumberValue()),
		Episode:      int(f["episode"].GetNumberValue()),
		MaxTile:      int(f["max_tile"].GetNumberValue()),
		Terminated:   f["terminated"].GetBoolValue(),
		Render:       f["render"].GetStringValue(),
		LegalActions: maskField(s, "legal_actions"),
	}, nil
}

func ParseCloseEnvironmentRequest(s *structpb.Struct) (CloseEnvironmentRequest, error) {
	id, err := requiredEnvID(s)
	return CloseEnvironmentRequest{EnvID: id}, err
}

func ParseSampleExperienceRequest(s *structpb.Struct) (SampleExperienceRequest, error) {
	id, err := requiredEnvID(s)
	if err != nil {
		return SampleExperienceRequest{}, err
	}
	n, err := optionalInt(s, "n")
	if err != nil {
		return SampleExperienceRequest{}, err
	}
	if n < 0 {
		return SampleExperienceRequest{}, fmt.Errorf("%w: n must be non-negative", errMalformedRequest)
	}
	seed, err := optionalSeed(s)
	if err != nil {
		return SampleExperienceRequest{}, err
	}
	return SampleExperienceRequest{
		EnvID:   id,
		N:       n,
		Seed:    seed,
		Tensors: s.GetFields()["tensors"].GetBoolValue(),
	}, nil
}

func ParseSampleExperienceResponse(s *structpb.Struct) (SampleExperienceResponse, error) {
	values := s.GetFields()["transitions"].GetListValue().GetValues()
	out := SampleExperienceResponse{Transitions: make([]experience.Transition, 0, len(values))}
	for i, v := range values {
		t, err := experience.TransitionFromStruct(v.GetStructValue())
		if err != nil {
			return SampleExperienceResponse{}, fmt.Errorf("transition %d: %w", i, err)
		}
		out.Transitions = append(out.Transitions, t)
	}

	for _, v := range s.GetFields()["tensors"].GetListValue().GetValues() {
		ts := v.GetStructValue()
		features := map[string]float32{}
		for k, f := range ts.GetFields()["features"].GetStructValue().GetFields() {
			features[k] = float32(f.GetNumberValue())
		}
		out.Tensors = append(out.Tensors, TransitionTensors{
			State:      floatsField(ts, "state"),
			NextState:  floatsField(ts, "next_state"),
			ActionMask: floatsField(ts, "action_mask"),
			Features:   features,
		})
	}
	for _, d := range s.GetFields()["tensor_shape"].GetListValue().GetValues() {
		out.TensorShape = append(out.TensorShape, int32(d.GetNumberValue()))
	}
	if len(out.Tensors) != 0 && len(out.Tensors) != len(out.Transitions) {
		return SampleExperienceResponse{}, fmt.Errorf("%d tensors for %d transitions", len(out.Tensors), len(out.Transitions))
	}
	return out, nil
}

func ParseWatchEnvironmentRequest(s *structpb.Struct) (WatchEnvironmentRequest, error) {
	id, err := requiredEnvID(s)
	return WatchEnvironmentRequest{EnvID: id}, err
}

// Field helpers

func requiredEnvID(s *structpb.Struct) (string, error) {
	id := s.GetFields()["env_id"].GetStringValue()
	if id == "" {
		return "", fmt.Errorf("%w: env_id is required", errMalformedRequest)
	}
	return id, nil
}

func optionalInt(s *structpb.Struct, key string) (int, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, fmt.Errorf("%w: %s must be a number", errMalformedRequest, key)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<31 {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", errMalformedRequest, key, f)
	}
	return int(f), nil
}

// Seeds travel as decimal strings since a float64 number cannot carry every
// int64. Integral numbers are accepted too.
func optionalSeed(s *structpb.Struct) (*int64, error) {
	v, ok := s.GetFields()["seed"]
	if !ok {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		seed, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: seed: %v", errMalformedRequest, err)
		}
		return &seed, nil
	case *structpb.Value_NumberValue:
		if k.NumberValue != math.Trunc(k.NumberValue) || math.Abs(k.NumberValue) > 1<<53 {
			return nil, fmt.Errorf("%w: seed must be an integer", errMalformedRequest)
		}
		seed := int64(k.NumberValue)
		return &seed, nil
	case *structpb.Value_NullValue:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: seed must be a string or number", errMalformedRequest)
	}
}

func putSeed(m map[string]any, seed *int64) {
	if seed != nil {
		m["seed"] = strconv.FormatInt(*seed, 10)
	}
}

func observationToAny(obs game.Observation) []any {
	rows := make([]any, len(obs))
	for y, row := range obs {
		cells := make([]any, len(row))
		for x, v := range row {
			cells[x] = v
		}
		rows[y] = cells
	}
	return rows
}

func observationField(s *structpb.Struct, key string) (game.Observation, error) {
	rows := s.GetFields()[key].GetListValue().GetValues()
	obs := make(game.Observation, len(rows))
	for y, r := range rows {
		cells := r.GetListValue().GetValues()
		if len(cells) != len(rows) {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", key, y, len(cells), len(rows))
		}
		obs[y] = make([]int, len(cells))
		for x, c := range cells {
			obs[y][x] = int(c.GetNumberValue())
		}
	}
	return obs, nil
}

func maskToAny(mask [core.NumActions]bool) []any {
	out := make([]any, len(mask))
	for i, v := range mask {
		out[i] = v
	}
	return out
}

func maskField(s *structpb.Struct, key string) [core.NumActions]bool {
	var mask [core.NumActions]bool
	for i, v := range s.GetFields()[key].GetListValue().GetValues() {
		if i < core.NumActions {
			mask[i] = v.GetBoolValue()
		}
	}
	return mask
}

func floatsToAny(vs []float32) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

func floatsField(s *structpb.Struct, key string) []float32 {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v.GetNumberValue())
	}
	return out
}
