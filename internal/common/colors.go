package common

import (
	"image/color"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
)

// Palette holds the colours the board is drawn with
type Palette struct {
	Background color.RGBA
	EmptyTile  color.RGBA
	DarkText   color.RGBA
	LightText  color.RGBA
}

// Tile colours by value; anything above 2048 uses SuperTileColor
var tileColors = map[int]color.RGBA{
	2:    {238, 228, 218, 255},
	4:    {237, 224, 200, 255},
	8:    {242, 177, 121, 255},
	16:   {245, 149, 99, 255},
	32:   {246, 124, 95, 255},
	64:   {246, 94, 59, 255},
	128:  {237, 207, 114, 255},
	256:  {237, 204, 97, 255},
	512:  {237, 200, 80, 255},
	1024: {237, 197, 63, 255},
	2048: {237, 194, 46, 255},
}

var (
	SuperTileColor = color.RGBA{60, 58, 50, 255}
	OverlayColor   = color.RGBA{238, 228, 218, 186}
	ScreenColor    = color.RGBA{250, 248, 239, 255}
)

// DefaultPalette returns the classic 2048 colours
func DefaultPalette() Palette {
	return Palette{
		Background: color.RGBA{187, 173, 160, 255},
		EmptyTile:  color.RGBA{205, 193, 180, 255},
		DarkText:   color.RGBA{119, 110, 101, 255},
		LightText:  color.RGBA{249, 246, 242, 255},
	}
}

// PaletteFromConfig builds a palette from configured RGB triples
func PaletteFromConfig(c config.ColorsConfig) Palette {
	return Palette{
		Background: RGB(c.Background),
		EmptyTile:  RGB(c.EmptyTile),
		DarkText:   RGB(c.DarkText),
		LightText:  RGB(c.LightText),
	}
}

// RGB converts an RGB triple to an opaque colour, clamping each channel
func RGB(c [3]int) color.RGBA {
	return color.RGBA{
		R: uint8(Clamp(c[0], 0, 255)),
		G: uint8(Clamp(c[1], 0, 255)),
		B: uint8(Clamp(c[2], 0, 255)),
		A: 255,
	}
}

// Tile returns the fill colour for a tile value; 0 is the empty cell
func (p Palette) Tile(v int) color.RGBA {
	if v == 0 {
		return p.EmptyTile
	}
	if c, ok := tileColors[v]; ok {
		return c
	}
	return SuperTileColor
}

// Text returns the label colour for a tile value
func (p Palette) Text(v int) color.RGBA {
	if v <= 4 {
		return p.DarkText
	}
	return p.LightText
}
