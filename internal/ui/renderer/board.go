package renderer

import (
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"

	"github.com/mitchelldurbincs/Game2048RL/internal/common"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
)

// BoardRenderer draws an observation as coloured tiles with their values
type BoardRenderer struct {
	layout      common.BoardLayout
	palette     common.Palette
	defaultFont font.Face
}

// NewBoardRenderer returns a renderer ready to use.
func NewBoardRenderer(layout common.BoardLayout, palette common.Palette, f font.Face) *BoardRenderer {
	return &BoardRenderer{layout: layout, palette: palette, defaultFont: f}
}

// Draw renders the board on the supplied Ebiten screen.
func (br *BoardRenderer) Draw(screen *ebiten.Image, obs game.Observation) {
	if len(obs) == 0 {
		return
	}

	size := float32(br.layout.Size())
	vector.DrawFilledRect(screen, float32(br.layout.OffsetX), float32(br.layout.OffsetY), size, size, br.palette.Background, false)

	for y, row := range obs {
		for x, v := range row {
			br.drawTile(screen, x, y, v)
		}
	}
}

func (br *BoardRenderer) drawTile(screen *ebiten.Image, x, y, v int) {
	sx, sy := br.layout.TileOrigin(x, y)
	ts := float32(br.layout.TileSize)
	vector.DrawFilledRect(screen, float32(sx), float32(sy), ts, ts, br.palette.Tile(v), false)

	if v == 0 || br.defaultFont == nil {
		return
	}

	label := strconv.Itoa(v)
	scale := labelScale(len(label), br.layout.TileSize)

	// text bounds in pixels before scaling
	b := text.BoundString(br.defaultFont, label)
	w := float64(b.Dx()) * scale
	h := float64(b.Dy()) * scale

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(
		float64(sx)+(float64(br.layout.TileSize)-w)/2,
		float64(sy)+(float64(br.layout.TileSize)+h)/2,
	)
	op.ColorScale.ScaleWithColor(br.palette.Text(v))
	text.DrawWithOptions(screen, label, br.defaultFont, op)
}

// labelScale picks an integer scale for a 7px-wide bitmap font so a label of
// n digits covers at most 70% of the tile width.
func labelScale(n, tileSize int) float64 {
	const glyphWidth = 7
	if n == 0 {
		return 1
	}
	s := (tileSize * 7 / 10) / (n * glyphWidth)
	return float64(common.Clamp(s, 1, 4))
}
