package analysis

import (
	"fmt"

	"github.com/notnil/chess"

	"kibitz/internal/annotate"
)

// MoveReport describes one played move. Scores are centipawns from the
// mover's point of view, with mates folded in.
type MoveReport struct {
	Ply         int
	MoveNumber  int
	Color       chess.Color
	UCI         string
	SAN         string
	FENBefore   string
	FENAfter    string
	ScoreBefore int
	ScoreAfter  int
	Loss        int
	Quality     annotate.Quality
	BestUCI     string
	BestSAN     string
	Comment     string
}

type Report struct {
	White      string
	Black      string
	WhiteElo   string
	BlackElo   string
	AverageElo int
	Thresholds annotate.Thresholds
	Result     string
	Engine     string
	StartFEN   string
	Moves      []MoveReport
	// Evals[i] is the score of position i from White's point of view, so
	// Evals has one more entry than Moves.
	Evals     []int
	Annotated string
}

// Plies is the number of positions after the start; viewers index 0..Plies.
func (r Report) Plies() int { return len(r.Moves) }

// FEN of position i, 0 being the start.
func (r Report) FEN(i int) string {
	switch {
	case i <= 0 || len(r.Moves) == 0:
		if r.StartFEN != "" {
			return r.StartFEN
		}
		if len(r.Moves) > 0 {
			return r.Moves[0].FENBefore
		}
		return chess.StartingPosition().String()
	case i > len(r.Moves):
		i = len(r.Moves)
	}
	return r.Moves[i-1].FENAfter
}

// Position decodes FEN(i).
func (r Report) Position(i int) (*chess.Position, error) {
	opt, err := chess.FEN(r.FEN(i))
	if err != nil {
		return nil, err
	}
	return chess.NewGame(opt).Position(), nil
}

// LastMove is the UCI move that led to position i, empty for the start.
func (r Report) LastMove(i int) string {
	if i <= 0 || i > len(r.Moves) {
		return ""
	}
	return r.Moves[i-1].UCI
}

// Counts maps each quality to the number of moves that got it.
type Counts map[annotate.Quality]int

type Summary struct {
	White Counts
	Black Counts
}

func (r Report) Summary() Summary {
	s := Summary{White: Counts{}, Black: Counts{}}
	for _, q := range annotate.AllQualities() {
		s.White[q] = 0
		s.Black[q] = 0
	}
	for _, m := range r.Moves {
		if m.Color == chess.White {
			s.White[m.Quality]++
		} else {
			s.Black[m.Quality]++
		}
	}
	return s
}

// FormatEval prints a centipawn score in pawns, or as #n / #-n when it
// encodes a mate.
func FormatEval(cp, mateScore int) string {
	if mateScore <= 0 {
		mateScore = DefaultMateScore
	}
	abs := cp
	if abs < 0 {
		abs = -abs
	}
	if abs > mateScore-1000 {
		n := mateScore - abs
		if cp < 0 {
			return fmt.Sprintf("#-%d", n)
		}
		return fmt.Sprintf("#%d", n)
	}
	return fmt.Sprintf("%+.2f", float64(cp)/100)
}
