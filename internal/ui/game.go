package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/ui/input"
	"github.com/mitchelldurbincs/Game2048RL/internal/ui/renderer"
)

// Space reserved above the board for the HUD
const hudHeight = 80

// UI configuration functions
func TileSize() int {
	return config.Get().UI.TileSize
}

func TileGap() int {
	return config.Get().UI.TileGap
}

// BoardLayout places an n×n board below the HUD, centred in the window
func BoardLayout(n int) common.BoardLayout {
	w, _ := ScreenSize(n)
	return common.BoardLayout{N: n, TileSize: TileSize(), Gap: TileGap()}.Centered(w, hudHeight)
}

// ScreenSize is the configured window, grown to fit the board when needed
func ScreenSize(n int) (int, int) {
	win := config.Get().UI.Window
	board := common.BoardLayout{N: n, TileSize: TileSize(), Gap: TileGap()}.Size()
	return max(win.Width, board), max(win.Height, board+hudHeight+TileGap())
}

// UIGame lets a policy play while the window watches. One move is made
// every turnInterval frames.
type UIGame struct {
	engine        *game.Engine
	boardRenderer *renderer.EnhancedBoardRenderer
	inputHandler  *input.Handler
	policy        game.Policy
	agent         string

	turnInterval int
	turnTimer    int
	lastAction   string
}

// NewUIGame creates a new Ebitengine game instance.
func NewUIGame(engine *game.Engine, agent string, policy game.Policy, turnInterval int) (*UIGame, error) {
	layout := BoardLayout(engine.Size())
	g := &UIGame{
		engine:       engine,
		policy:       policy,
		agent:        agent,
		turnInterval: max(1, turnInterval),
		inputHandler: input.NewHandler(layout),
	}
	g.boardRenderer = renderer.NewEnhancedBoardRenderer(layout, common.PaletteFromConfig(config.Get().Colors), basicfont.Face7x13)
	return g, nil
}

// Update proceeds the game state.
func (g *UIGame) Update() error {
	switch g.inputHandler.Update().Command {
	case input.CommandQuit:
		return ebiten.Termination
	case input.CommandReset:
		g.engine.Reset()
		g.boardRenderer.SetSpawn(nil)
		g.lastAction = ""
		g.turnTimer = 0
		return nil
	}

	g.turnTimer++
	if g.turnTimer < g.turnInterval || g.engine.IsTerminated() {
		return nil
	}
	g.turnTimer = 0

	a := g.policy(g.engine.Observation())
	res, err := g.engine.Step(a)
	if err != nil {
		return err
	}
	g.lastAction = a.String()
	g.boardRenderer.SetSpawn(res.Spawned)
	return nil
}

// Draw renders the game screen.
func (g *UIGame) Draw(screen *ebiten.Image) {
	screen.Fill(common.ScreenColor)
	g.boardRenderer.Draw(screen, g.engine.Observation(), hudFor(g.engine, g.lastAction, g.agent), g.engine.IsTerminated())
}

// Layout defines the Ebitengine screen size.
func (g *UIGame) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return ScreenSize(g.engine.Size())
}

func hudFor(e *game.Engine, lastAction, agent string) renderer.HUD {
	return renderer.HUD{
		Score:      e.Score(),
		Steps:      e.Steps(),
		MaxTile:    e.MaxTile(),
		Episode:    e.Episode(),
		LastAction: lastAction,
		Agent:      agent,
	}
}
