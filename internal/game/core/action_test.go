package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Encoding(t *testing.T) {
	// Existing callers send raw integers; these values are fixed.
	assert.Equal(t, Action(0), ActionUp)
	assert.Equal(t, Action(1), ActionDown)
	assert.Equal(t, Action(2), ActionLeft)
	assert.Equal(t, Action(3), ActionRight)
	assert.Equal(t, NumActions, len(AllActions))
}

func TestAction_Validate(t *testing.T) {
	for _, a := range AllActions {
		assert.NoError(t, a.Validate(), "action %s", a)
	}
	for _, a := range []Action{-1, 4, 99} {
		err := a.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidAction)
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "up", ActionUp.String())
	assert.Equal(t, "right", ActionRight.String())
	assert.Equal(t, "unknown(9)", Action(9).String())
}

func TestAction_Orientation(t *testing.T) {
	assert.True(t, ActionUp.IsVertical())
	assert.True(t, ActionDown.IsVertical())
	assert.False(t, ActionLeft.IsVertical())
	assert.True(t, ActionDown.IsReversed())
	assert.True(t, ActionRight.IsReversed())
	assert.False(t, ActionUp.IsReversed())
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in       string
		expected Action
	}{
		{"up", ActionUp},
		{"DOWN", ActionDown},
		{" l ", ActionLeft},
		{"3", ActionRight},
	}
	for _, tt := range tests {
		a, err := ParseAction(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, a)
	}

	_, err := ParseAction("sideways")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
