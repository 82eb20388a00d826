package game

import (
	"math/rand"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Spawner places new tiles on uniformly chosen empty cells. It keeps a
// reusable scratch slice for the empty cell scan.
type Spawner struct {
	rng             *rand.Rand
	fourProbability float64
	empty           []int
}

func NewSpawner(rng *rand.Rand, fourProbability float64, size int) *Spawner {
	return &Spawner{
		rng:             rng,
		fourProbability: fourProbability,
		empty:           make([]int, 0, size*size),
	}
}

// Spawn places one tile and reports where. It draws the cell first and the
// value second. A full board is left untouched and returns false.
func (s *Spawner) Spawn(b *core.Board) (TileSpawn, bool) {
	s.empty = b.EmptyCells(s.empty[:0])
	if len(s.empty) == 0 {
		return TileSpawn{}, false
	}

	idx := s.empty[s.rng.Intn(len(s.empty))]
	value := 2
	if s.rng.Float64() < s.fourProbability {
		value = 4
	}
	b.T[idx] = value

	x, y := b.XY(idx)
	return TileSpawn{Position: core.NewCoordinate(x, y), Value: value}, true
}

// FourProbability returns the configured chance of spawning a 4
func (s *Spawner) FourProbability() float64 {
	return s.fourProbability
}
