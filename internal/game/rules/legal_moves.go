package rules

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

// LegalMoveCalculator computes which directions would change a board.
type LegalMoveCalculator struct {
	mover *core.Mover
}

// NewLegalMoveCalculator creates a calculator for boards of the given size.
// The calculator reuses its buffer and is not safe for concurrent use.
func NewLegalMoveCalculator(size int) *LegalMoveCalculator {
	return &LegalMoveCalculator{mover: core.NewMover(size)}
}

// GetLegalActionMask returns, indexed by action encoding, whether each
// direction would move or merge at least one tile.
func (lmc *LegalMoveCalculator) GetLegalActionMask(b *core.Board) [core.NumActions]bool {
	var mask [core.NumActions]bool
	for _, a := range core.AllActions {
		_, changed := lmc.mover.Preview(b, a)
		mask[a] = changed
	}
	return mask
}

// LegalActions returns the directions that would change the board, in
// encoding order.
func (lmc *LegalMoveCalculator) LegalActions(b *core.Board) []core.Action {
	mask := lmc.GetLegalActionMask(b)
	actions := make([]core.Action, 0, core.NumActions)
	for _, a := range core.AllActions {
		if mask[a] {
			actions = append(actions, a)
		}
	}
	return actions
}

// LegalActionMask is a one-off helper around LegalMoveCalculator.
func LegalActionMask(b *core.Board) [core.NumActions]bool {
	return NewLegalMoveCalculator(b.N).GetLegalActionMask(b)
}
