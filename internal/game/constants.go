package game

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

const (
	// DefaultBoardSize is the classic 4x4 board
	DefaultBoardSize = 4

	// DefaultFourProbability is the chance a spawned tile is a 4 instead of a 2
	DefaultFourProbability = 0.1

	// InitialTiles is how many tiles a reset places on the empty board
	InitialTiles = 2

	// ActionSpace is the number of discrete actions
	ActionSpace = core.NumActions
)
