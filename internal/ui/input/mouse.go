package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// MinSwipeDistance is the drag length in pixels that counts as a move
const MinSwipeDistance = 30

// PointerSource reports the cursor and left button edges
type PointerSource interface {
	CursorPosition() (int, int)
	JustPressed() bool
	JustReleased() bool
}

type ebitenPointer struct{}

func (ebitenPointer) CursorPosition() (int, int) { return ebiten.CursorPosition() }

func (ebitenPointer) JustPressed() bool {
	return inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft)
}

func (ebitenPointer) JustReleased() bool {
	return inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft)
}

// SwipeDetector turns a press-drag-release that starts on the board into a move
type SwipeDetector struct {
	layout  common.BoardLayout
	pointer PointerSource

	active         bool
	startX, startY int
}

func NewSwipeDetector(layout common.BoardLayout, pointer PointerSource) *SwipeDetector {
	return &SwipeDetector{layout: layout, pointer: pointer}
}

func (s *SwipeDetector) Update() (core.Action, bool) {
	x, y := s.pointer.CursorPosition()

	if s.pointer.JustPressed() {
		s.active = s.layout.Contains(x, y)
		s.startX, s.startY = x, y
	}
	if !s.pointer.JustReleased() || !s.active {
		return 0, false
	}
	s.active = false
	return common.SwipeDirection(x-s.startX, y-s.startY, MinSwipeDistance)
}

// Hovered returns the tile under the cursor
func (s *SwipeDetector) Hovered() (int, int, bool) {
	x, y := s.pointer.CursorPosition()
	return s.layout.TileAt(x, y)
}
