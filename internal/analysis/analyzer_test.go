package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kibitz/internal/annotate"
	"kibitz/internal/db"
	"kibitz/internal/engine"
	"kibitz/internal/pgnfile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scholarsMate = `[Event "Live Chess"]
[White "alice"]
[Black "bob"]
[WhiteElo "1200"]
[BlackElo "1100"]
[Result "1-0"]

1. e4 {[%clk 0:09:58]} e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`

// fakeEvaluator answers from a table keyed by position key; unknown
// positions score 0.
type fakeEvaluator struct {
	mu    sync.Mutex
	infos map[string]engine.Info
	calls map[string]int
	err   error
	delay time.Duration
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{infos: map[string]engine.Info{}, calls: map[string]int{}}
}

func (f *fakeEvaluator) set(fen string, info engine.Info) {
	key, _ := PositionKey(fen)
	f.infos[key] = info
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, fen string) (engine.Info, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return engine.Info{}, ctx.Err()
		}
	}
	key, err := PositionKey(fen)
	if err != nil {
		return engine.Info{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return engine.Info{}, f.err
	}
	return f.infos[key], nil
}

func (f *fakeEvaluator) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func parse(t *testing.T, pgn string) *chess.Game {
	t.Helper()
	g, err := pgnfile.ParseGame(pgn)
	require.NoError(t, err)
	return g
}

func TestRunClassifiesBlunder(t *testing.T) {
	game := parse(t, scholarsMate)
	pos := game.Positions()
	require.Len(t, pos, 8)

	ev := newFakeEvaluator()
	// black to move after 3. Bc4: slightly worse, Qe7 holds.
	ev.set(pos[5].String(), engine.Info{Depth: 12, Score: engine.Score{CP: -50}, PV: []string{"d8e7"}})
	// white to move after 3... Nf6: mate in one.
	ev.set(pos[6].String(), engine.Info{Depth: 12, Score: engine.Score{IsMate: true, Mate: 1}, PV: []string{"h5f7"}})

	a := &Analyzer{Evaluator: ev, Workers: 3, MateScore: 10000, DefaultElo: 1000}
	rep, err := a.Run(context.Background(), game, annotate.DefaultThresholds, nil)
	require.NoError(t, err)

	require.Len(t, rep.Moves, 7)
	require.Len(t, rep.Evals, 8)
	assert.Equal(t, "alice", rep.White)
	assert.Equal(t, "bob", rep.Black)
	assert.Equal(t, 1150, rep.AverageElo)
	assert.Equal(t, "1-0", rep.Result)

	nf6 := rep.Moves[5]
	assert.Equal(t, 6, nf6.Ply)
	assert.Equal(t, 3, nf6.MoveNumber)
	assert.Equal(t, chess.Black, nf6.Color)
	assert.Equal(t, "g8f6", nf6.UCI)
	assert.Equal(t, "Nf6", nf6.SAN)
	assert.Equal(t, -50, nf6.ScoreBefore)
	assert.Equal(t, -9999, nf6.ScoreAfter)
	assert.Equal(t, 9949, nf6.Loss)
	assert.Equal(t, annotate.Blunder, nf6.Quality)
	assert.Equal(t, "d8e7", nf6.BestUCI)
	assert.Equal(t, "Qe7", nf6.BestSAN)
	assert.Equal(t, "[blunder ??] Best: d8e7", nf6.Comment)

	mate := rep.Moves[6]
	assert.Equal(t, "Qxf7#", mate.SAN)
	assert.Equal(t, 0, mate.Loss)
	assert.Equal(t, annotate.Excellent, mate.Quality)
	assert.Equal(t, "[excellent !!]", mate.Comment)

	// a move that gains is not a negative loss.
	assert.Equal(t, 0, rep.Moves[4].Loss)

	// the clock comment is dropped, the rest of the annotation kept.
	assert.Equal(t, "[excellent !!]", rep.Moves[0].Comment)

	assert.Equal(t, 50, rep.Evals[5])
	assert.Equal(t, 9999, rep.Evals[6])
	assert.Equal(t, 10000, rep.Evals[7])

	// the mated position is never sent to the engine.
	assert.Equal(t, 7, ev.totalCalls())

	assert.Contains(t, rep.Annotated, "Nf6 {[blunder ??] Best: d8e7}")
	assert.Contains(t, rep.Annotated, "[White \"alice\"]")
	assert.NotContains(t, rep.Annotated, "%clk")

	sum := rep.Summary()
	assert.Equal(t, 1, sum.Black[annotate.Blunder])
	assert.Equal(t, 2, sum.Black[annotate.Excellent])
	assert.Equal(t, 4, sum.White[annotate.Excellent])
	assert.Equal(t, 0, sum.White[annotate.Mistake])
}

func TestRunEvaluatesRepeatedPositionsOnce(t *testing.T) {
	game := parse(t, "1. Nf3 Nf6 2. Ng1 Ng8 3. Nf3 Nf6 *")
	ev := newFakeEvaluator()

	var calls []int
	a := &Analyzer{Evaluator: ev, Workers: 2}
	rep, err := a.Run(context.Background(), game, annotate.DefaultThresholds, func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Len(t, rep.Moves, 6)
	assert.Equal(t, 4, ev.totalCalls())
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
	assert.Equal(t, "*", rep.Result)
}

func TestRunStalemateScoresZero(t *testing.T) {
	// white stalemates the black king with Qg6 instead of mating on g7.
	const start = "7k/5K2/8/6Q1/8/8/8/8 w - - 0 1"
	game := parse(t, `[SetUp "1"]
[FEN "`+start+`"]

1. Qg6 1/2-1/2
`)
	ev := newFakeEvaluator()
	ev.set(start, engine.Info{Score: engine.Score{IsMate: true, Mate: 1}, PV: []string{"g5g7"}})

	a := &Analyzer{Evaluator: ev}
	rep, err := a.Run(context.Background(), game, annotate.DefaultThresholds, nil)
	require.NoError(t, err)
	require.Len(t, rep.Moves, 1)
	assert.Equal(t, 9999, rep.Moves[0].Loss)
	assert.Equal(t, annotate.Blunder, rep.Moves[0].Quality)
	assert.Equal(t, "Qg7#", rep.Moves[0].BestSAN)
	assert.Equal(t, 1, ev.totalCalls())
}

func TestRunEvaluatorError(t *testing.T) {
	game := parse(t, scholarsMate)
	ev := newFakeEvaluator()
	ev.err = errors.New("engine exploded")

	a := &Analyzer{Evaluator: ev, Workers: 4}
	_, err := a.Run(context.Background(), game, annotate.DefaultThresholds, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ev.err)
}

func TestRunCancelled(t *testing.T) {
	game := parse(t, scholarsMate)
	ev := newFakeEvaluator()
	ev.delay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a := &Analyzer{Evaluator: ev, Workers: 2}
	_, err := a.Run(ctx, game, annotate.DefaultThresholds, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunWithoutMoves(t *testing.T) {
	a := &Analyzer{Evaluator: newFakeEvaluator()}
	_, err := a.Run(context.Background(), chess.NewGame(), annotate.DefaultThresholds, nil)
	assert.ErrorIs(t, err, ErrNoMoves)
}

func TestReportFEN(t *testing.T) {
	game := parse(t, scholarsMate)
	a := &Analyzer{Evaluator: newFakeEvaluator()}
	rep, err := a.Run(context.Background(), game, annotate.DefaultThresholds, nil)
	require.NoError(t, err)

	pos := game.Positions()
	assert.Equal(t, 7, rep.Plies())
	assert.Equal(t, pos[0].String(), rep.FEN(0))
	assert.Equal(t, pos[0].String(), rep.FEN(-3))
	assert.Equal(t, pos[3].String(), rep.FEN(3))
	assert.Equal(t, pos[7].String(), rep.FEN(99))

	p, err := rep.Position(7)
	require.NoError(t, err)
	assert.Equal(t, chess.Checkmate, p.Status())
	assert.Equal(t, "h5f7", rep.LastMove(7))
	assert.Equal(t, "e2e4", rep.LastMove(1))
	assert.Empty(t, rep.LastMove(0))
	assert.Empty(t, rep.LastMove(8))
}

type countingSearcher struct {
	mu    sync.Mutex
	calls int
	info  engine.Info
}

func (s *countingSearcher) Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	info := s.info
	if limit.Depth > 0 {
		info.Depth = limit.Depth
	}
	return info, nil
}

func TestCachedEvaluator(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(filepath.Join(t.TempDir(), "kibitz.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	s := &countingSearcher{info: engine.Info{Depth: 20, Score: engine.Score{CP: 31}, PV: []string{"e2e4", "e7e5"}}}
	fen := chess.StartingPosition().String()

	c := &CachedEvaluator{Store: store, Engine: s, Name: "Stockfish", Limit: engine.Limit{Movetime: time.Second}}
	info, err := c.Evaluate(ctx, fen)
	require.NoError(t, err)
	assert.Equal(t, 31, info.Score.CP)
	assert.Equal(t, 1, s.calls)

	// same position with other move counters hits the cache.
	info, err = c.Evaluate(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 12 40")
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, []string{"e2e4", "e7e5"}, info.PV)
	assert.Equal(t, "e2e4", info.Best())

	// a longer search than the stored one is not served from cache.
	longer := &CachedEvaluator{Store: store, Engine: s, Name: "Stockfish", Limit: engine.Limit{Movetime: 2 * time.Second}}
	_, err = longer.Evaluate(ctx, fen)
	require.NoError(t, err)
	assert.Equal(t, 2, s.calls)

	// neither is another engine's result.
	other := &CachedEvaluator{Store: store, Engine: s, Name: "Komodo", Limit: engine.Limit{Movetime: time.Second}}
	_, err = other.Evaluate(ctx, fen)
	require.NoError(t, err)
	assert.Equal(t, 3, s.calls)

	deep := &CachedEvaluator{Store: store, Engine: s, Name: "Komodo", Limit: engine.Limit{Depth: 25}}
	_, err = deep.Evaluate(ctx, fen)
	require.NoError(t, err)
	assert.Equal(t, 4, s.calls)
	_, err = deep.Evaluate(ctx, fen)
	require.NoError(t, err)
	assert.Equal(t, 4, s.calls)

	_, err = c.Evaluate(ctx, "not a fen")
	assert.Error(t, err)
}

func TestPositionKey(t *testing.T) {
	key, err := PositionKey("  rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1 ")
	require.NoError(t, err)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3", key)

	_, err = PositionKey("8/8/8 w")
	assert.Error(t, err)
}
