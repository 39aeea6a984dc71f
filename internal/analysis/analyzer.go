// Package analysis evaluates every position of a game and classifies each
// move by the centipawns it lost.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/notnil/chess"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kibitz/internal/annotate"
	"kibitz/internal/engine"
)

var ErrNoMoves = errors.New("game has no moves")

const DefaultMateScore = 10000

type Analyzer struct {
	Evaluator  Evaluator
	Workers    int
	MateScore  int
	DefaultElo int
	Log        *zap.Logger
}

// Progress is called after each engine evaluation. total counts the
// distinct positions sent to the evaluator: repeated and finished positions
// are left out, so it is usually below the number of moves. Calls are
// serialized.
type Progress func(done, total int)

type position struct {
	fen  string
	info engine.Info
	// terminal positions are scored without asking the engine.
	terminal bool
}

func (a *Analyzer) Run(ctx context.Context, game *chess.Game, t annotate.Thresholds, progress Progress) (Report, error) {
	if a.Evaluator == nil {
		return Report{}, errors.New("analysis: no evaluator")
	}
	moves := game.Moves()
	positions := game.Positions()
	if len(moves) == 0 {
		return Report{}, ErrNoMoves
	}
	if len(positions) != len(moves)+1 {
		return Report{}, fmt.Errorf("analysis: %d positions for %d moves", len(positions), len(moves))
	}
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	mateScore := a.MateScore
	if mateScore <= 0 {
		mateScore = DefaultMateScore
	}

	// one entry per distinct position; slot[i] points position i at it.
	var unique []*position
	slot := make([]*position, len(positions))
	byKey := make(map[string]*position, len(positions))
	for i, pos := range positions {
		fen := pos.String()
		key, err := PositionKey(fen)
		if err != nil {
			return Report{}, err
		}
		if p, ok := byKey[key]; ok {
			slot[i] = p
			continue
		}
		p := &position{fen: fen}
		switch pos.Status() {
		case chess.Checkmate:
			p.terminal = true
			p.info = engine.Info{Score: engine.Score{IsMate: true, Mate: 0}}
		case chess.Stalemate:
			p.terminal = true
		}
		byKey[key] = p
		slot[i] = p
		if !p.terminal {
			unique = append(unique, p)
		}
	}

	log.Debug("evaluating positions",
		zap.Int("plies", len(moves)),
		zap.Int("distinct", len(unique)),
		zap.Int("workers", a.workers()))

	if err := a.evaluate(ctx, unique, progress); err != nil {
		return Report{}, err
	}

	rep := Report{
		White:      tagValue(game, "White"),
		Black:      tagValue(game, "Black"),
		WhiteElo:   tagValue(game, "WhiteElo"),
		BlackElo:   tagValue(game, "BlackElo"),
		Thresholds: t,
		Result:     annotate.Result(game),
		StartFEN:   positions[0].String(),
		Moves:      make([]MoveReport, len(moves)),
		Evals:      make([]int, len(positions)),
	}
	rep.AverageElo = annotate.AverageElo(rep.WhiteElo, rep.BlackElo, a.DefaultElo)

	for i, pos := range positions {
		score := slot[i].info.Score.Relative(mateScore)
		if pos.Turn() == chess.Black {
			score = -score
		}
		rep.Evals[i] = score
	}

	existing := annotate.MoveComments(game)
	comments := make([]string, len(moves))
	for i, mv := range moves {
		before, after := positions[i], positions[i+1]
		bestInfo := slot[i].info
		best := bestInfo.Score.Relative(mateScore)
		afterRel := slot[i+1].info.Score.Relative(mateScore)
		loss := max(0, best+afterRel)
		q := annotate.Classify(loss, t)

		played := chess.UCINotation{}.Encode(before, mv)
		m := MoveReport{
			Ply:         i + 1,
			MoveNumber:  moveNumber(before),
			Color:       before.Turn(),
			UCI:         played,
			SAN:         chess.AlgebraicNotation{}.Encode(before, mv),
			FENBefore:   before.String(),
			FENAfter:    after.String(),
			ScoreBefore: best,
			ScoreAfter:  -afterRel,
			Loss:        loss,
			Quality:     q,
			BestUCI:     bestInfo.Best(),
		}
		if m.BestUCI != "" {
			m.BestSAN = sanOf(before, m.BestUCI)
		}
		m.Comment = annotate.Comment(existing[i], q, m.BestUCI, played)
		comments[i] = m.Comment
		rep.Moves[i] = m
	}
	rep.Annotated = annotate.EncodePGN(game, comments)
	return rep, nil
}

func (a *Analyzer) workers() int {
	if a.Workers <= 0 {
		return 1
	}
	return a.Workers
}

func (a *Analyzer) evaluate(ctx context.Context, todo []*position, progress Progress) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())

	var mu sync.Mutex
	done := 0
	for _, p := range todo {
		g.Go(func() error {
			info, err := a.Evaluator.Evaluate(gctx, p.fen)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", p.fen, err)
			}
			p.info = info
			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(todo))
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func tagValue(game *chess.Game, key string) string {
	if tp := game.GetTagPair(key); tp != nil {
		return tp.Value
	}
	return ""
}

// sanOf converts a UCI move to SAN, returning uci unchanged when the move
// is not legal in pos.
func sanOf(pos *chess.Position, uci string) string {
	mv, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return uci
	}
	return chess.AlgebraicNotation{}.Encode(pos, mv)
}

func moveNumber(pos *chess.Position) int {
	_, n, _ := fenTurn(pos.String())
	return n
}
