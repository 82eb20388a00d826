package rules

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

// IsTerminal reports whether no move can change the board: every cell is
// occupied and no two 4-adjacent cells hold the same value. Any empty cell
// makes the board non-terminal.
func IsTerminal(b *core.Board) bool {
	if !b.IsFull() {
		return false
	}
	return !HasAdjacentEqual(b)
}

// HasAdjacentEqual reports whether some horizontally or vertically adjacent
// pair of non-empty cells holds equal values. Diagonals do not count.
func HasAdjacentEqual(b *core.Board) bool {
	for y := 0; y < b.N; y++ {
		for x := 0; x < b.N; x++ {
			v := b.Get(x, y)
			if v == core.EmptyTile {
				continue
			}
			c := core.NewCoordinate(x, y)
			if r := c.Right(); r.IsValid(b.N) && b.At(r) == v {
				return true
			}
			if d := c.Down(); d.IsValid(b.N) && b.At(d) == v {
				return true
			}
		}
	}
	return false
}
