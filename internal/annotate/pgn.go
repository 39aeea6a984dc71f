package annotate

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

const pgnLineWidth = 80

// EncodePGN writes the game's tags and mainline in SAN, with comments[i]
// placed after move i. Black moves that follow a comment get a "N..." prefix.
func EncodePGN(game *chess.Game, comments []string) string {
	var sb strings.Builder
	for _, tp := range game.TagPairs() {
		fmt.Fprintf(&sb, "[%s \"%s\"]\n", tp.Key, escapeTag(tp.Value))
	}
	sb.WriteString("\n")

	moves := game.Moves()
	positions := game.Positions()
	tokens := make([]string, 0, len(moves)*3+1)
	needNumber := true
	for i, mv := range moves {
		pos := positions[i]
		fullMove := moveNumber(positions[0], i)
		if pos.Turn() == chess.White {
			tokens = append(tokens, fmt.Sprintf("%d.", fullMove))
		} else if needNumber {
			tokens = append(tokens, fmt.Sprintf("%d...", fullMove))
		}
		tokens = append(tokens, chess.AlgebraicNotation{}.Encode(pos, mv))
		needNumber = false
		if i < len(comments) && strings.TrimSpace(comments[i]) != "" {
			tokens = append(tokens, "{"+sanitizeComment(comments[i])+"}")
			needNumber = true
		}
	}
	tokens = append(tokens, Result(game))

	line := 0
	for i, tok := range tokens {
		if i > 0 {
			if line+1+len(tok) > pgnLineWidth {
				sb.WriteString("\n")
				line = 0
			} else {
				sb.WriteString(" ")
				line++
			}
		}
		sb.WriteString(tok)
		line += len(tok)
	}
	sb.WriteString("\n")
	return sb.String()
}

// Result prefers the Result tag, then the outcome the library derived.
func Result(game *chess.Game) string {
	if tp := game.GetTagPair("Result"); tp != nil && tp.Value != "" {
		return tp.Value
	}
	return string(game.Outcome())
}

// MoveComments returns the PGN comment of every mainline move.
func MoveComments(game *chess.Game) []string {
	raw := game.Comments()
	out := make([]string, len(game.Moves()))
	for i := range out {
		if i < len(raw) {
			out[i] = strings.Join(raw[i], " ")
		}
	}
	return out
}

// moveNumber is the full-move number of ply i counted from the first position.
func moveNumber(start *chess.Position, ply int) int {
	first := 1
	if fields := strings.Fields(start.String()); len(fields) == 6 {
		fmt.Sscanf(fields[5], "%d", &first)
	}
	offset := 0
	if start.Turn() == chess.Black {
		offset = 1
	}
	return first + (ply+offset)/2
}

func escapeTag(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func sanitizeComment(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "}", ")"))
}
