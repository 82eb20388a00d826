package ui

import (
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font/basicfont"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/ui/input"
	"github.com/mitchelldurbincs/Game2048RL/internal/ui/renderer"
)

// HumanGame is played from the keyboard or by swiping with the mouse
type HumanGame struct {
	engine        *game.Engine
	boardRenderer *renderer.EnhancedBoardRenderer
	inputHandler  *input.Handler
	lastAction    string
}

func NewHumanGame(engine *game.Engine) (*HumanGame, error) {
	layout := BoardLayout(engine.Size())
	g := &HumanGame{
		engine:        engine,
		boardRenderer: renderer.NewEnhancedBoardRenderer(layout, common.PaletteFromConfig(config.Get().Colors), basicfont.Face7x13),
		inputHandler:  input.NewHandler(layout),
	}
	return g, nil
}

func (g *HumanGame) Update() error {
	in := g.inputHandler.Update()
	g.boardRenderer.SetHover(g.inputHandler.Hovered())

	switch in.Command {
	case input.CommandQuit:
		return ebiten.Termination
	case input.CommandReset:
		g.engine.Reset()
		g.boardRenderer.SetSpawn(nil)
		g.lastAction = ""
	case input.CommandMove:
		return g.move(in.Action)
	}
	return nil
}

func (g *HumanGame) move(a core.Action) error {
	if g.engine.IsTerminated() {
		return nil
	}
	res, err := g.engine.Step(a)
	if errors.Is(err, core.ErrInvalidAction) {
		log.Warn().Err(err).Msg("Ignoring invalid action")
		return nil
	}
	if err != nil {
		return err
	}
	g.lastAction = a.String()
	// A no-op move keeps the previous spawn marker
	if res.Changed {
		g.boardRenderer.SetSpawn(res.Spawned)
	}
	return nil
}

func (g *HumanGame) Draw(screen *ebiten.Image) {
	screen.Fill(common.ScreenColor)
	g.boardRenderer.Draw(screen, g.engine.Observation(), hudFor(g.engine, g.lastAction, ""), g.engine.IsTerminated())
}

func (g *HumanGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return ScreenSize(g.engine.Size())
}
