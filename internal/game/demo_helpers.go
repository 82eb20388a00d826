package game

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Policy picks an action from an observation. These baselines exist for
// demos and smoke tests, not for learning.
type Policy func(obs Observation) core.Action

// DefaultPolicy always slides left.
func DefaultPolicy(Observation) core.Action {
	return core.ActionLeft
}

// RandomPolicy picks uniformly among the four actions, legal or not.
func RandomPolicy(rng *rand.Rand) Policy {
	return func(Observation) core.Action {
		a := core.Action(rng.Intn(core.NumActions))
		log.Debug().Str("action", a.String()).Msg("Generated random action")
		return a
	}
}

// PolicyByName resolves the demo agent names "default" and "random".
func PolicyByName(name string, rng *rand.Rand) (Policy, bool) {
	switch name {
	case "default", "":
		return DefaultPolicy, true
	case "random":
		return RandomPolicy(rng), true
	default:
		return nil, false
	}
}

// ScriptedPolicy replays actions in order and wraps around at the end.
func ScriptedPolicy(actions []core.Action) Policy {
	next := 0
	return func(Observation) core.Action {
		a := actions[next%len(actions)]
		next++
		return a
	}
}

// ParseScript reads a comma or space separated action list such as
// "left,up,3". An empty script is an error.
func ParseScript(s string) ([]core.Action, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty action script: %w", core.ErrInvalidAction)
	}
	actions := make([]core.Action, len(fields))
	for i, f := range fields {
		a, err := core.ParseAction(f)
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}
	return actions, nil
}
