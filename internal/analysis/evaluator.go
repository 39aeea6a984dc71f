package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kibitz/internal/db"
	"kibitz/internal/engine"
)

// Evaluator scores a position from the side to move's point of view.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) (engine.Info, error)
}

// Searcher is what the engine pool offers.
type Searcher interface {
	Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Info, error)
}

type EvalStore interface {
	EvalByKey(ctx context.Context, key string) (db.Eval, error)
	UpsertEval(ctx context.Context, e db.Eval) error
}

// CachedEvaluator answers from the evals table when a stored search by the
// same engine went at least as deep (or as long) as Limit asks, and
// searches and stores otherwise.
type CachedEvaluator struct {
	Store  EvalStore
	Engine Searcher
	Name   string
	Limit  engine.Limit
	Log    *zap.Logger
}

func (c *CachedEvaluator) Evaluate(ctx context.Context, fen string) (engine.Info, error) {
	key, err := PositionKey(fen)
	if err != nil {
		return engine.Info{}, err
	}
	if c.Store != nil {
		row, err := c.Store.EvalByKey(ctx, key)
		switch {
		case err == nil && c.usable(row):
			return infoFromRow(row), nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			c.logger().Warn("eval cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	info, err := c.Engine.Evaluate(ctx, fen, c.Limit)
	if err != nil {
		return engine.Info{}, err
	}
	if c.Store != nil {
		row := db.Eval{
			FENKey:     key,
			Engine:     c.Name,
			Depth:      info.Depth,
			MovetimeMS: movetimeMS(c.Limit),
			ScoreCP:    info.Score.CP,
			Mate:       info.Score.Mate,
			IsMate:     info.Score.IsMate,
			BestMove:   info.Best(),
			PV:         strings.Join(info.PV, " "),
		}
		if c.Limit.Depth > 0 {
			row.MovetimeMS = 0
		}
		if err := c.Store.UpsertEval(ctx, row); err != nil {
			c.logger().Warn("eval cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return info, nil
}

func (c *CachedEvaluator) usable(row db.Eval) bool {
	if row.Engine != c.Name {
		return false
	}
	if c.Limit.Depth > 0 {
		return row.Depth >= c.Limit.Depth
	}
	return row.MovetimeMS >= movetimeMS(c.Limit)
}

// movetimeMS is the search time the engine actually gets for a movetime limit.
func movetimeMS(l engine.Limit) int64 {
	if ms := l.Movetime.Milliseconds(); ms > 0 {
		return ms
	}
	return 1000
}

func (c *CachedEvaluator) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func infoFromRow(row db.Eval) engine.Info {
	return engine.Info{
		Depth:    row.Depth,
		Score:    engine.Score{CP: row.ScoreCP, Mate: row.Mate, IsMate: row.IsMate},
		PV:       strings.Fields(row.PV),
		BestMove: row.BestMove,
	}
}

// PositionKey is the placement, side to move, castling and en passant
// fields of fen. Move counters do not change the evaluation.
func PositionKey(fen string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(fen))
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid FEN %q", fen)
	}
	return strings.Join(parts[:4], " "), nil
}
