package game

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

// ExperienceCollector receives every transition the engine produces
type ExperienceCollector interface {
	// OnEpisodeStart is called after each reset
	OnEpisodeStart(envID string, episode int)

	// OnStep is called after each accepted step. prev is the observation the
	// action was chosen from and mask the legal actions on that observation.
	OnStep(prev Observation, mask [core.NumActions]bool, action core.Action, result StepResult)

	// OnEpisodeEnd is called once when the episode terminates
	OnEpisodeEnd(stats EpisodeStats)
}
