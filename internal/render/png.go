package render

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/notnil/chess"
	"golang.org/x/image/font/gofont/gobold"
)

const (
	MinPNGSize     = 80
	DefaultPNGSize = 480
)

var (
	pieceFont *truetype.Font

	pngWhitePiece = color.RGBA{0xfa, 0xfa, 0xfa, 0xff}
	pngBlackPiece = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

func init() {
	var err error
	pieceFont, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
}

// PNG draws pos as a size x size image. Pieces are discs carrying their
// letter.
func PNG(w io.Writer, pos *chess.Position, size int, lastMove string, flip bool) error {
	if size <= 0 {
		size = DefaultPNGSize
	}
	if size < MinPNGSize {
		return fmt.Errorf("png size %d is below %d", size, MinPNGSize)
	}
	sq := float64(size) / 8
	dc := gg.NewContext(size, size)
	dc.SetFontFace(truetype.NewFace(pieceFont, &truetype.Options{Size: sq * 0.45}))

	board := pos.Board()
	from, to, hasMove := moveSquares(lastMove)
	ranks, files := orientation(flip)
	for row, r := range ranks {
		for col, f := range files {
			s := chess.NewSquare(f, r)
			x, y := float64(col)*sq, float64(row)*sq

			fill := svgDark
			if isLight(s) {
				fill = svgLight
			}
			dc.DrawRectangle(x, y, sq, sq)
			dc.SetColor(fill)
			dc.Fill()
			if hasMove && (s == from || s == to) {
				dc.DrawRectangle(x, y, sq, sq)
				dc.SetRGBA255(0xcd, 0xd2, 0x6a, 0xb0)
				dc.Fill()
			}

			p := board.Piece(s)
			if p == chess.NoPiece {
				continue
			}
			drawPiece(dc, p, x+sq/2, y+sq/2, sq*0.38)
		}
	}
	return dc.EncodePNG(w)
}

func drawPiece(dc *gg.Context, p chess.Piece, cx, cy, radius float64) {
	body, ink := pngWhitePiece, pngBlackPiece
	if p.Color() == chess.Black {
		body, ink = pngBlackPiece, pngWhitePiece
	}
	dc.DrawCircle(cx, cy, radius)
	dc.SetColor(body)
	dc.FillPreserve()
	dc.SetColor(pngBlackPiece)
	dc.SetLineWidth(radius * 0.08)
	dc.Stroke()

	dc.SetColor(ink)
	dc.DrawStringAnchored(strings.ToUpper(pieceLetter(p)), cx, cy, 0.5, 0.35)
}
