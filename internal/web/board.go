package web

import (
	"fmt"
	"slices"
	"strings"

	"github.com/notnil/chess"

	"kibitz/internal/render"
)

type SquareView struct {
	Glyph  string
	Class  string
	Square string
}

// boardFromPosition lays the squares out top-left first. Squares touched
// by lastMove (UCI) get the "moved" class.
func boardFromPosition(pos *chess.Position, lastMove string, flip bool) [][]SquareView {
	board := make([][]SquareView, 0, 8)
	b := pos.Board()

	var touched []string
	if len(lastMove) >= 4 {
		touched = []string{lastMove[0:2], lastMove[2:4]}
	}

	ranks := []chess.Rank{chess.Rank8, chess.Rank7, chess.Rank6, chess.Rank5, chess.Rank4, chess.Rank3, chess.Rank2, chess.Rank1}
	files := []chess.File{chess.FileA, chess.FileB, chess.FileC, chess.FileD, chess.FileE, chess.FileF, chess.FileG, chess.FileH}
	if flip {
		slices.Reverse(ranks)
		slices.Reverse(files)
	}
	for _, r := range ranks {
		row := make([]SquareView, 0, 8)
		for _, f := range files {
			sq := chess.NewSquare(f, r)
			square := fmt.Sprintf("%c%d", 'a'+byte(f), int(r)+1)

			// a1 is dark.
			class := "sq "
			if (int(f)+int(r))%2 == 1 {
				class += "light"
			} else {
				class += "dark"
			}
			for _, t := range touched {
				if strings.EqualFold(t, square) {
					class += " moved"
				}
			}

			row = append(row, SquareView{Glyph: render.Glyph(b.Piece(sq)), Class: class, Square: square})
		}
		board = append(board, row)
	}
	return board
}
