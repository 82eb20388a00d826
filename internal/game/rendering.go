package game

import (
	"strings"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// ANSI color codes for terminal rendering
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// tileColors is indexed by log2 of the tile value; larger tiles reuse the last entry
var tileColors = []string{ColorGray, ColorWhite, ColorYellow, ColorGreen, ColorCyan, ColorBlue, ColorPurple, ColorRed}

// Render formats an observation as tab separated rows of width-4 numbers.
func Render(obs Observation) string {
	var sb strings.Builder
	sb.Grow(len(obs) * len(obs) * 5)
	for y, row := range obs {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x, v := range row {
			if x > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(core.IntToStringFixedWidth(v, 4))
		}
	}
	return sb.String()
}

// Render returns the plain text board
func (e *Engine) Render() string {
	return Render(e.Observation())
}

// RenderColor returns the board with ANSI colors per tile value and a
// score line, for interactive terminals.
func (e *Engine) RenderColor() string {
	var sb strings.Builder
	n := e.board.N
	sb.Grow(n*n*16 + 32)

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := e.board.Get(x, y)
			sb.WriteString(tileColor(v))
			if v == core.EmptyTile {
				sb.WriteString("   ·")
			} else {
				sb.WriteString(core.IntToStringFixedWidth(v, 4))
			}
			sb.WriteString(ColorReset)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(ColorBold)
	sb.WriteString("score ")
	sb.WriteString(core.IntToStringFixedWidth(e.score, 1))
	sb.WriteString(ColorReset)
	sb.WriteByte('\n')
	return sb.String()
}

func tileColor(v int) string {
	k := core.Log2(v)
	if k >= len(tileColors) {
		return tileColors[len(tileColors)-1]
	}
	return tileColors[k]
}
