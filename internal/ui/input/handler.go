package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

type Command int

const (
	CommandNone Command = iota
	CommandMove
	CommandReset
	CommandQuit
)

// Input is what the player asked for during one frame
type Input struct {
	Command Command
	Action  core.Action
}

// KeySource reports keys pressed this frame
type KeySource interface {
	IsKeyJustPressed(key ebiten.Key) bool
}

type ebitenKeys struct{}

func (ebitenKeys) IsKeyJustPressed(key ebiten.Key) bool {
	return inpututil.IsKeyJustPressed(key)
}

var moveBindings = []struct {
	key    ebiten.Key
	action core.Action
}{
	{ebiten.KeyArrowUp, core.ActionUp},
	{ebiten.KeyW, core.ActionUp},
	{ebiten.KeyArrowDown, core.ActionDown},
	{ebiten.KeyS, core.ActionDown},
	{ebiten.KeyArrowLeft, core.ActionLeft},
	{ebiten.KeyA, core.ActionLeft},
	{ebiten.KeyArrowRight, core.ActionRight},
	{ebiten.KeyD, core.ActionRight},
}

type Handler struct {
	keys  KeySource
	swipe *SwipeDetector
}

// NewHandler reads the keyboard and mouse swipes on the given board
func NewHandler(layout common.BoardLayout) *Handler {
	return NewHandlerWithSources(ebitenKeys{}, NewSwipeDetector(layout, ebitenPointer{}))
}

func NewHandlerWithSources(keys KeySource, swipe *SwipeDetector) *Handler {
	return &Handler{keys: keys, swipe: swipe}
}

// Update polls input once per frame. Quit wins over reset, reset over moves.
func (h *Handler) Update() Input {
	// The swipe detector tracks button edges, so it is polled every frame
	var swiped bool
	var swipe core.Action
	if h.swipe != nil {
		swipe, swiped = h.swipe.Update()
	}

	if h.keys.IsKeyJustPressed(ebiten.KeyQ) || h.keys.IsKeyJustPressed(ebiten.KeyEscape) {
		return Input{Command: CommandQuit}
	}
	if h.keys.IsKeyJustPressed(ebiten.KeyR) {
		return Input{Command: CommandReset}
	}
	for _, b := range moveBindings {
		if h.keys.IsKeyJustPressed(b.key) {
			return Input{Command: CommandMove, Action: b.action}
		}
	}
	if swiped {
		return Input{Command: CommandMove, Action: swipe}
	}
	return Input{}
}

// Hovered returns the board tile under the cursor
func (h *Handler) Hovered() (int, int, bool) {
	if h.swipe == nil {
		return 0, 0, false
	}
	return h.swipe.Hovered()
}
