package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	"kibitz/internal/annotate"
	"kibitz/internal/db"
)

// Rows converts a report to its storage form. The caller fills in the
// source, engine and path fields of the analysis row.
func (r Report) Rows() (db.Analysis, []db.Move) {
	a := db.Analysis{
		White:        r.White,
		Black:        r.Black,
		WhiteElo:     r.WhiteElo,
		BlackElo:     r.BlackElo,
		AvgElo:       r.AverageElo,
		Result:       storedResult(r.Result),
		Engine:       r.Engine,
		AnnotatedPGN: r.Annotated,
	}
	moves := make([]db.Move, len(r.Moves))
	for i, m := range r.Moves {
		moves[i] = db.Move{
			Ply:         m.Ply,
			UCI:         m.UCI,
			SAN:         m.SAN,
			FENBefore:   m.FENBefore,
			FENAfter:    m.FENAfter,
			ScoreBefore: m.ScoreBefore,
			ScoreAfter:  m.ScoreAfter,
			Loss:        m.Loss,
			Quality:     m.Quality.String(),
			BestUCI:     m.BestUCI,
			BestSAN:     m.BestSAN,
			Comment:     m.Comment,
		}
	}
	return a, moves
}

// ReportFromRows rebuilds a report from a stored analysis. Thresholds are
// not stored and stay zero.
func ReportFromRows(a db.Analysis, rows []db.Move) (Report, error) {
	r := Report{
		White:      a.White,
		Black:      a.Black,
		WhiteElo:   a.WhiteElo,
		BlackElo:   a.BlackElo,
		AverageElo: a.AvgElo,
		Result:     a.Result,
		Engine:     a.Engine,
		Annotated:  a.AnnotatedPGN,
		Moves:      make([]MoveReport, len(rows)),
		Evals:      make([]int, len(rows)+1),
	}
	if len(rows) == 0 {
		r.StartFEN = chess.StartingPosition().String()
		return r, nil
	}
	r.StartFEN = rows[0].FENBefore

	for i, row := range rows {
		q, err := annotate.ParseQuality(row.Quality)
		if err != nil {
			return Report{}, fmt.Errorf("move %d: %w", row.Ply, err)
		}
		color, number, err := fenTurn(row.FENBefore)
		if err != nil {
			return Report{}, fmt.Errorf("move %d: %w", row.Ply, err)
		}
		r.Moves[i] = MoveReport{
			Ply:         row.Ply,
			MoveNumber:  number,
			Color:       color,
			UCI:         row.UCI,
			SAN:         row.SAN,
			FENBefore:   row.FENBefore,
			FENAfter:    row.FENAfter,
			ScoreBefore: row.ScoreBefore,
			ScoreAfter:  row.ScoreAfter,
			Loss:        row.Loss,
			Quality:     q,
			BestUCI:     row.BestUCI,
			BestSAN:     row.BestSAN,
			Comment:     row.Comment,
		}

		sign := 1
		if color == chess.Black {
			sign = -1
		}
		if i == 0 {
			r.Evals[0] = sign * row.ScoreBefore
		}
		r.Evals[i+1] = sign * row.ScoreAfter
	}
	return r, nil
}

// fenTurn reads the side to move and full-move number of a FEN.
func fenTurn(fen string) (chess.Color, int, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return chess.NoColor, 0, fmt.Errorf("invalid FEN %q", fen)
	}
	color := chess.White
	if parts[1] == "b" {
		color = chess.Black
	}
	number := 1
	if len(parts) >= 6 {
		if n, err := strconv.Atoi(parts[5]); err == nil && n > 0 {
			number = n
		}
	}
	return color, number, nil
}

func storedResult(s string) string {
	switch s {
	case "1-0", "0-1", "1/2-1/2":
		return s
	}
	return "*"
}
