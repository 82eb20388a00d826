package common

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

// Abs returns the absolute value of an integer
func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// SwipeDirection maps a drag of (dx, dy) pixels to a move. Drags shorter
// than minDistance along their dominant axis, or exactly diagonal, are not
// moves. Screen y grows downwards.
func SwipeDirection(dx, dy, minDistance int) (core.Action, bool) {
	ax, ay := Abs(dx), Abs(dy)
	if ax == ay || max(ax, ay) < minDistance {
		return 0, false
	}
	if ax > ay {
		if dx < 0 {
			return core.ActionLeft, true
		}
		return core.ActionRight, true
	}
	if dy < 0 {
		return core.ActionUp, true
	}
	return core.ActionDown, true
}
