package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestTransition_StructRoundTrip(t *testing.T) {
	tr := createTestTransition("env-1", 3)
	tr.ShapedReward = 2
	tr.Terminated = true

	s, err := tr.ToStruct()
	require.NoError(t, err)
	assert.Equal(t, "env-1", s.Fields["env_id"].GetStringValue())
	assert.Equal(t, float64(2), s.Fields["size"].GetNumberValue())
	assert.Len(t, s.Fields["state"].GetListValue().GetValues(), 4)

	back, err := TransitionFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, tr, back)
}

func TestTransitionFromStruct_BadShape(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{
		"size":       2,
		"state":      []any{2, 0, 0},
		"next_state": []any{2, 0, 0, 0},
	})
	require.NoError(t, err)

	_, err = TransitionFromStruct(s)
	assert.Error(t, err)
}
