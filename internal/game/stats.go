package game

// Stats returns a summary of the current episode
func (e *Engine) Stats() EpisodeStats {
	return EpisodeStats{
		EnvID:      e.envID,
		Episode:    e.episode,
		Steps:      e.steps,
		Score:      e.score,
		MaxTile:    e.board.MaxTile(),
		Terminated: e.IsTerminated(),
	}
}
