// Package render draws chess positions as terminal text, SVG and PNG.
package render

import (
	"strings"

	"github.com/notnil/chess"
)

// Glyph is the Unicode chess symbol of p, empty for no piece.
func Glyph(p chess.Piece) string {
	if p == chess.NoPiece {
		return ""
	}

	isWhite := p.Color() == chess.White
	switch p.Type() {
	case chess.King:
		if isWhite {
			return "♔"
		}
		return "♚"
	case chess.Queen:
		if isWhite {
			return "♕"
		}
		return "♛"
	case chess.Rook:
		if isWhite {
			return "♖"
		}
		return "♜"
	case chess.Bishop:
		if isWhite {
			return "♗"
		}
		return "♝"
	case chess.Knight:
		if isWhite {
			return "♘"
		}
		return "♞"
	case chess.Pawn:
		if isWhite {
			return "♙"
		}
		return "♟"
	default:
		return ""
	}
}

// pieceLetter is the FEN letter: upper case for white.
func pieceLetter(p chess.Piece) string {
	if p == chess.NoPiece {
		return ""
	}
	letter := ""
	switch p.Type() {
	case chess.King:
		letter = "k"
	case chess.Queen:
		letter = "q"
	case chess.Rook:
		letter = "r"
	case chess.Bishop:
		letter = "b"
	case chess.Knight:
		letter = "n"
	case chess.Pawn:
		letter = "p"
	default:
		return ""
	}
	if p.Color() == chess.White {
		return strings.ToUpper(letter)
	}
	return letter
}

// a1 is dark.
func isLight(sq chess.Square) bool {
	return (int(sq.File())+int(sq.Rank()))%2 == 1
}

// moveSquares parses the from and to squares of a UCI move such as "e2e4"
// or "e7e8q".
func moveSquares(uci string) (from, to chess.Square, ok bool) {
	if len(uci) < 4 {
		return 0, 0, false
	}
	from, ok = parseSquare(uci[0:2])
	if !ok {
		return 0, 0, false
	}
	to, ok = parseSquare(uci[2:4])
	return from, to, ok
}

func parseSquare(s string) (chess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, false
	}
	return chess.NewSquare(chess.File(s[0]-'a'), chess.Rank(s[1]-'1')), true
}

// ranks and files in drawing order, top-left first.
func orientation(flip bool) ([]chess.Rank, []chess.File) {
	ranks := make([]chess.Rank, 0, 8)
	files := make([]chess.File, 0, 8)
	if flip {
		for r := chess.Rank1; r <= chess.Rank8; r++ {
			ranks = append(ranks, r)
		}
		for f := chess.FileH; f >= chess.FileA; f-- {
			files = append(files, f)
		}
		return ranks, files
	}
	for r := chess.Rank8; r >= chess.Rank1; r-- {
		ranks = append(ranks, r)
	}
	for f := chess.FileA; f <= chess.FileH; f++ {
		files = append(files, f)
	}
	return ranks, files
}
