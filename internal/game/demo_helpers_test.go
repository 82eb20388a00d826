package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/testutil"
)

func TestPolicyByName(t *testing.T) {
	rng := testutil.NewTestRNG(1)

	p, ok := PolicyByName("default", rng)
	assert.True(t, ok)
	assert.Equal(t, core.ActionLeft, p(nil))

	p, ok = PolicyByName("random", rng)
	assert.True(t, ok)
	seen := map[core.Action]bool{}
	for i := 0; i < 200; i++ {
		a := p(nil)
		assert.NoError(t, a.Validate())
		seen[a] = true
	}
	assert.Len(t, seen, core.NumActions)

	_, ok = PolicyByName("greedy", rng)
	assert.False(t, ok)
}

func TestParseScript(t *testing.T) {
	actions, err := ParseScript("left, up 3,d")
	assert.NoError(t, err)
	assert.Equal(t, []core.Action{core.ActionLeft, core.ActionUp, core.ActionRight, core.ActionDown}, actions)

	_, err = ParseScript("left,sideways")
	assert.ErrorIs(t, err, core.ErrInvalidAction)

	_, err = ParseScript(" , ")
	assert.ErrorIs(t, err, core.ErrInvalidAction)
}

func TestScriptedPolicy_Wraps(t *testing.T) {
	p := ScriptedPolicy([]core.Action{core.ActionUp, core.ActionRight})

	var got []core.Action
	for i := 0; i < 5; i++ {
		got = append(got, p(nil))
	}
	assert.Equal(t, []core.Action{core.ActionUp, core.ActionRight, core.ActionUp, core.ActionRight, core.ActionUp}, got)
}
