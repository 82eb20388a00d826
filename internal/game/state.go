package game

import (
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Observation is an N x N copy of the board. Engines never retain or read
// an observation after returning it, so callers may modify it freely.
type Observation [][]int

// NewObservation copies b into a fresh observation.
func NewObservation(b *core.Board) Observation {
	return Observation(b.Rows())
}

// Size returns N for an N x N observation
func (o Observation) Size() int { return len(o) }

// Flat returns the cells in row-major order
func (o Observation) Flat() []int {
	out := make([]int, 0, len(o)*len(o))
	for _, row := range o {
		out = append(out, row...)
	}
	return out
}

// Clone returns a deep copy
func (o Observation) Clone() Observation {
	c := make(Observation, len(o))
	for i, row := range o {
		c[i] = append([]int(nil), row...)
	}
	return c
}

func (o Observation) Equal(other Observation) bool {
	if len(o) != len(other) {
		return false
	}
	for y, row := range o {
		if len(row) != len(other[y]) {
			return false
		}
		for x, v := range row {
			if other[y][x] != v {
				return false
			}
		}
	}
	return true
}

func (o Observation) MaxTile() int {
	m := 0
	for _, row := range o {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}
	return m
}

// TileSpawn records where a new tile was placed
type TileSpawn struct {
	Position core.Coordinate
	Value    int
}

// StepResult is what Step hands back to the caller. Changed and Spawned are
// informational; the RL contract is Observation, Reward and Terminated.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Changed     bool
	Spawned     *TileSpawn
}

// EpisodeStats summarises the current episode
type EpisodeStats struct {
	EnvID      string
	Episode    int
	Steps      int
	Score      int
	MaxTile    int
	Terminated bool
}
