package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/notnil/chess"
)

type TextOptions struct {
	// Flip puts Black at the bottom.
	Flip bool
	// LastMove in UCI; its squares are highlighted.
	LastMove string
	// Plain drops colours and marks the last move with brackets instead.
	Plain bool
}

var (
	lightSquare = lipgloss.NewStyle().Background(lipgloss.Color("#f0d9b5")).Foreground(lipgloss.Color("#000000"))
	darkSquare  = lipgloss.NewStyle().Background(lipgloss.Color("#b58863")).Foreground(lipgloss.Color("#000000"))
	lightMoved  = lipgloss.NewStyle().Background(lipgloss.Color("#cdd26a")).Foreground(lipgloss.Color("#000000"))
	darkMoved   = lipgloss.NewStyle().Background(lipgloss.Color("#aaa23a")).Foreground(lipgloss.Color("#000000"))
	coordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Text draws pos as eight rows of three-cell squares with rank and file
// labels around the board.
func Text(pos *chess.Position, opts TextOptions) string {
	board := pos.Board()
	from, to, hasMove := moveSquares(opts.LastMove)
	ranks, files := orientation(opts.Flip)

	var sb strings.Builder
	for _, r := range ranks {
		sb.WriteString(coord(fmt.Sprintf("%d ", int(r)+1), opts.Plain))
		for _, f := range files {
			sq := chess.NewSquare(f, r)
			moved := hasMove && (sq == from || sq == to)
			sb.WriteString(cell(board.Piece(sq), isLight(sq), moved, opts.Plain))
		}
		sb.WriteString("\n")
	}
	var footer strings.Builder
	footer.WriteString("  ")
	for _, f := range files {
		fmt.Fprintf(&footer, " %c ", 'a'+byte(f))
	}
	sb.WriteString(coord(footer.String(), opts.Plain))
	sb.WriteString("\n")
	return sb.String()
}

func cell(p chess.Piece, light, moved, plain bool) string {
	glyph := Glyph(p)
	if plain {
		if glyph == "" {
			glyph = "."
		}
		if moved {
			return "[" + glyph + "]"
		}
		return " " + glyph + " "
	}
	if glyph == "" {
		glyph = " "
	}
	style := darkSquare
	switch {
	case light && moved:
		style = lightMoved
	case moved:
		style = darkMoved
	case light:
		style = lightSquare
	}
	return style.Render(" " + glyph + " ")
}

func coord(s string, plain bool) string {
	if plain {
		return s
	}
	return coordStyle.Render(s)
}
