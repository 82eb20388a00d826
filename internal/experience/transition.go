package experience

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Transition is one (s, a, r, s', done) record with the legal action mask
// of s.
type Transition struct {
	ID           string
	EnvID        string
	Episode      int
	Step         int
	State        game.Observation
	Action       core.Action
	Reward       float64
	ShapedReward float64
	NextState    game.Observation
	Terminated   bool
	Changed      bool
	ActionMask   [core.NumActions]bool
	CollectedAt  time.Time
}

// ToStruct encodes t as a protobuf Struct. Boards are flattened row-major
// next to their size.
func (t Transition) ToStruct() (*structpb.Struct, error) {
	mask := make([]any, core.NumActions)
	for i, legal := range t.ActionMask {
		mask[i] = legal
	}
	return structpb.NewStruct(map[string]any{
		"id":            t.ID,
		"env_id":        t.EnvID,
		"episode":       t.Episode,
		"step":          t.Step,
		"size":          t.State.Size(),
		"state":         intsToAny(t.State.Flat()),
		"action":        int(t.Action),
		"reward":        t.Reward,
		"shaped_reward": t.ShapedReward,
		"next_state":    intsToAny(t.NextState.Flat()),
		"terminated":    t.Terminated,
		"changed":       t.Changed,
		"action_mask":   mask,
		"collected_at":  t.CollectedAt.UTC().Format(time.RFC3339Nano),
	})
}

// TransitionFromStruct is the inverse of Transition.ToStruct.
func TransitionFromStruct(s *structpb.Struct) (Transition, error) {
	f := s.GetFields()
	size := int(f["size"].GetNumberValue())
	state, err := unflatten(f["state"].GetListValue(), size)
	if err != nil {
		return Transition{}, fmt.Errorf("state: %w", err)
	}
	next, err := unflatten(f["next_state"].GetListValue(), size)
	if err != nil {
		return Transition{}, fmt.Errorf("next_state: %w", err)
	}

	t := Transition{
		ID:           f["id"].GetStringValue(),
		EnvID:        f["env_id"].GetStringValue(),
		Episode:      int(f["episode"].GetNumberValue()),
		Step:         int(f["step"].GetNumberValue()),
		State:        state,
		Action:       core.Action(int(f["action"].GetNumberValue())),
		Reward:       f["reward"].GetNumberValue(),
		ShapedReward: f["shaped_reward"].GetNumberValue(),
		NextState:    next,
		Terminated:   f["terminated"].GetBoolValue(),
		Changed:      f["changed"].GetBoolValue(),
	}
	for i, v := range f["action_mask"].GetListValue().GetValues() {
		if i < core.NumActions {
			t.ActionMask[i] = v.GetBoolValue()
		}
	}
	if ts := f["collected_at"].GetStringValue(); ts != "" {
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Transition{}, fmt.Errorf("collected_at: %w", err)
		}
		t.CollectedAt = at
	}
	return t, nil
}

func intsToAny(vs []int) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func unflatten(list *structpb.ListValue, size int) (game.Observation, error) {
	values := list.GetValues()
	if len(values) != size*size {
		return nil, fmt.Errorf("expected %d cells, got %d", size*size, len(values))
	}
	obs := make(game.Observation, size)
	for y := range obs {
		obs[y] = make([]int, size)
		for x := range obs[y] {
			obs[y][x] = int(values[y*size+x].GetNumberValue())
		}
	}
	return obs, nil
}
