package experience

import (
	"fmt"
	"time"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

func createTestTransition(envID string, step int) Transition {
	return Transition{
		ID:      fmt.Sprintf("%s-%d", envID, step),
		EnvID:   envID,
		Episode: 1,
		Step:    step,
		State: game.Observation{
			{2, 0},
			{0, 2},
		},
		Action: core.ActionLeft,
		Reward: 4,
		NextState: game.Observation{
			{4, 0},
			{2, 0},
		},
		Changed:     true,
		ActionMask:  [core.NumActions]bool{true, true, true, false},
		CollectedAt: time.Date(2024, 5, 1, 12, 0, 0, step, time.UTC),
	}
}
