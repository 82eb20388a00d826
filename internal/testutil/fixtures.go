package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// BoardFromRows builds a board from literal rows and fails the test on error
func BoardFromRows(t testing.TB, rows ...[]int) *core.Board {
	t.Helper()
	b, err := core.BoardFromRows(rows)
	require.NoError(t, err)
	return b
}

// CheckerboardRows returns a full n x n board of alternating 2s and 4s that
// has no legal move.
func CheckerboardRows(n int) [][]int {
	rows := make([][]int, n)
	for y := range rows {
		rows[y] = make([]int, n)
		for x := range rows[y] {
			if (x+y)%2 == 0 {
				rows[y][x] = 2
			} else {
				rows[y][x] = 4
			}
		}
	}
	return rows
}

// RandomRows returns an n x n board where each cell is empty with the given
// probability and otherwise a tile between 2 and 2^maxExp.
func RandomRows(t testing.TB, seed int64, n int, emptyProb float64, maxExp int) [][]int {
	t.Helper()
	rng := NewTestRNG(seed)
	rows := make([][]int, n)
	for y := range rows {
		rows[y] = make([]int, n)
		for x := range rows[y] {
			if rng.Float64() < emptyProb {
				continue
			}
			rows[y][x] = 1 << (1 + rng.Intn(maxExp))
		}
	}
	return rows
}
