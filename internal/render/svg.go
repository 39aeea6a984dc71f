package render

import (
	"image/color"
	"io"

	"github.com/notnil/chess"
	"github.com/notnil/chess/image"
)

var (
	svgLight  = color.RGBA{0xf0, 0xd9, 0xb5, 0xff}
	svgDark   = color.RGBA{0xb5, 0x88, 0x63, 0xff}
	svgMarked = color.RGBA{0xcd, 0xd2, 0x6a, 0xff}
)

// SVG writes pos as an SVG diagram with the last move's squares marked.
func SVG(w io.Writer, pos *chess.Position, lastMove string, flip bool) error {
	var marked []chess.Square
	if from, to, ok := moveSquares(lastMove); ok {
		marked = []chess.Square{from, to}
	}
	perspective := chess.White
	if flip {
		perspective = chess.Black
	}
	return image.SVG(w, pos.Board(),
		image.SquareColors(svgLight, svgDark),
		image.MarkSquares(svgMarked, marked...),
		image.Perspective(perspective),
	)
}
