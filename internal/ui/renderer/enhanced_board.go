package renderer

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
)

var (
	SpawnColor = color.RGBA{255, 255, 255, 220}
	HoverColor = color.RGBA{255, 255, 255, 48}
	HUDColor   = color.RGBA{119, 110, 101, 255}
)

// HUD is the status shown above the board
type HUD struct {
	Score      int
	Steps      int
	MaxTile    int
	Episode    int
	LastAction string
	Agent      string
}

// EnhancedBoardRenderer adds the spawn marker, hover highlight, HUD and the
// game-over veil on top of the plain board.
type EnhancedBoardRenderer struct {
	*BoardRenderer

	spawn    *game.TileSpawn
	hoverX   int
	hoverY   int
	hovering bool
}

func NewEnhancedBoardRenderer(layout common.BoardLayout, palette common.Palette, f font.Face) *EnhancedBoardRenderer {
	return &EnhancedBoardRenderer{BoardRenderer: NewBoardRenderer(layout, palette, f)}
}

// SetSpawn marks the tile placed by the last step; nil clears it
func (ebr *EnhancedBoardRenderer) SetSpawn(s *game.TileSpawn) {
	ebr.spawn = s
}

func (ebr *EnhancedBoardRenderer) SetHover(x, y int, ok bool) {
	ebr.hoverX, ebr.hoverY, ebr.hovering = x, y, ok
}

func (ebr *EnhancedBoardRenderer) Draw(screen *ebiten.Image, obs game.Observation, hud HUD, terminated bool) {
	ebr.BoardRenderer.Draw(screen, obs)

	if ebr.hovering {
		ebr.drawTileOverlay(screen, ebr.hoverX, ebr.hoverY, HoverColor)
	}
	if ebr.spawn != nil {
		ebr.drawBorder(screen, ebr.spawn.Position.X, ebr.spawn.Position.Y, SpawnColor)
	}

	ebr.drawHUD(screen, hud)

	if terminated {
		ebr.drawGameOver(screen, hud.Score)
	}
}

// HUDLines formats the status block
func HUDLines(hud HUD) []string {
	lines := []string{
		fmt.Sprintf("Score: %d   Best tile: %d", hud.Score, hud.MaxTile),
		fmt.Sprintf("Episode: %d   Steps: %d", hud.Episode, hud.Steps),
	}
	status := "Arrows/WASD or swipe: move   R: reset   Q: quit"
	if hud.Agent != "" {
		status = fmt.Sprintf("Agent: %s   R: reset   Q: quit", hud.Agent)
	}
	if hud.LastAction != "" {
		status = fmt.Sprintf("Last: %-5s  %s", hud.LastAction, status)
	}
	return append(lines, status)
}

func (ebr *EnhancedBoardRenderer) drawHUD(screen *ebiten.Image, hud HUD) {
	if ebr.defaultFont == nil {
		return
	}
	x := ebr.layout.OffsetX
	for i, line := range HUDLines(hud) {
		text.Draw(screen, line, ebr.defaultFont, x, 20+i*18, HUDColor)
	}
}

func (ebr *EnhancedBoardRenderer) drawGameOver(screen *ebiten.Image, score int) {
	size := float32(ebr.layout.Size())
	vector.DrawFilledRect(screen, float32(ebr.layout.OffsetX), float32(ebr.layout.OffsetY), size, size, common.OverlayColor, false)

	if ebr.defaultFont == nil {
		return
	}
	msg := "Game over!"
	sub := fmt.Sprintf("Score %d - press R", score)
	cx := ebr.layout.OffsetX + ebr.layout.Size()/2
	cy := ebr.layout.OffsetY + ebr.layout.Size()/2

	b := text.BoundString(ebr.defaultFont, msg)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(3, 3)
	op.GeoM.Translate(float64(cx-b.Dx()*3/2), float64(cy))
	op.ColorScale.ScaleWithColor(HUDColor)
	text.DrawWithOptions(screen, msg, ebr.defaultFont, op)

	sb := text.BoundString(ebr.defaultFont, sub)
	text.Draw(screen, sub, ebr.defaultFont, cx-sb.Dx()/2, cy+30, HUDColor)
}

func (ebr *EnhancedBoardRenderer) drawTileOverlay(screen *ebiten.Image, gridX, gridY int, c color.Color) {
	sx, sy := ebr.layout.TileOrigin(gridX, gridY)
	size := float32(ebr.layout.TileSize)
	vector.DrawFilledRect(screen, float32(sx), float32(sy), size, size, c, false)
}

func (ebr *EnhancedBoardRenderer) drawBorder(screen *ebiten.Image, gridX, gridY int, c color.Color) {
	sx, sy := ebr.layout.TileOrigin(gridX, gridY)
	x, y := float32(sx), float32(sy)
	size := float32(ebr.layout.TileSize)
	thickness := float32(3)

	vector.DrawFilledRect(screen, x, y, size, thickness, c, false)
	vector.DrawFilledRect(screen, x, y+size-thickness, size, thickness, c, false)
	vector.DrawFilledRect(screen, x, y, thickness, size, c, false)
	vector.DrawFilledRect(screen, x+size-thickness, y, thickness, size, c, false)
}
