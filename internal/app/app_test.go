package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kibitz/internal/annotate"
	"kibitz/internal/config"
	"kibitz/internal/engine"
	"kibitz/internal/pgnfile"
)

const gamePGN = `[Event "Live Chess"]
[Site "Chess.com"]
[White "alice"]
[Black "bob"]
[WhiteElo "2100"]
[BlackElo "2050"]
[Result "1-0"]
[Link "https://www.chess.com/game/live/4242"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`

type fakeSearcher struct {
	mu     sync.Mutex
	calls  int
	closed bool
}

func (f *fakeSearcher) Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return engine.Info{Depth: 10, Score: engine.Score{CP: 20}}, nil
}

func (f *fakeSearcher) Name() string { return "fake-engine" }

func (f *fakeSearcher) Close() error {
	f.closed = true
	return nil
}

func chesscomServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/player/alice/games/archives", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"archives": []string{
			"http://" + r.Host + "/player/alice/games/2025/04",
		}})
	})
	mux.HandleFunc("/player/alice/games/2025/04", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"games": []map[string]any{
			{"url": "https://www.chess.com/game/live/4242", "pgn": gamePGN},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) config.Config {
	dir := t.TempDir()
	return config.Config{
		DataDir:     dir,
		GamesDir:    filepath.Join(dir, "games"),
		AnalysesDir: filepath.Join(dir, "analyses"),
		DBPath:      filepath.Join(dir, "kibitz.sqlite"),
		ChessCom:    config.ChessCom{BaseURL: baseURL, UserAgent: "kibitz-test", Timeout: 5 * time.Second},
		Engine:      config.Engine{Movetime: 100 * time.Millisecond, Workers: 2},
		Analysis:    config.Analysis{ScaleByElo: true, DefaultElo: 1000, MateScore: 10000},
	}
}

func TestFetchAnalyzeReport(t *testing.T) {
	ctx := context.Background()
	srv := chesscomServer(t)
	cfg := testConfig(t, srv.URL)
	fake := &fakeSearcher{}
	clock := time.Date(2025, 4, 12, 18, 30, 5, 0, time.UTC)

	a, err := New(cfg, nil, WithEngine(fake), WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	path, err := a.Fetch(ctx, FetchRequest{Users: []string{"bob", "alice"}, Year: 2025, Month: 4, GameID: "4242"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.GamesDir, "game_4242.pgn"), path)

	id, rep, err := a.Analyze(ctx, "", nil)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, "fake-engine", rep.Engine)
	assert.Len(t, rep.Moves, 7)
	// 2075 average picks the expert band.
	assert.Equal(t, annotate.ThresholdsForElo(2075), rep.Thresholds)
	assert.Equal(t, 7, fake.calls)

	out := filepath.Join(cfg.AnalysesDir, "analyzed_game_20250412_183005.pgn")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[excellent !!]")

	gotID, stored, err := a.Report(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, rep.Evals, stored.Evals)
	assert.Equal(t, "alice", stored.White)

	list, err := a.Analyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fake-engine", list[0].Engine)

	// a second run of the same game is answered from the eval cache.
	_, _, err = a.Analyze(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, fake.calls)

	require.NoError(t, a.Close())
	assert.True(t, fake.closed)
}

func TestFetchLatestUsesConfiguredUser(t *testing.T) {
	srv := chesscomServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Username = "alice"
	a, err := New(cfg, nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	defer a.Close()

	path, err := a.Fetch(context.Background(), FetchRequest{})
	require.NoError(t, err)
	g, err := pgnfile.ReadGame(path)
	require.NoError(t, err)
	assert.Len(t, g.Moves(), 7)
}

func TestFetchNeedsUser(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:1"), nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Fetch(context.Background(), FetchRequest{Users: []string{" "}})
	assert.True(t, errors.Is(err, ErrNoUsername))

	_, err = a.Fetch(context.Background(), FetchRequest{Users: []string{"alice"}, GameID: "1"})
	assert.Error(t, err)
}

func TestThresholdSelection(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	game, err := pgnfile.ParseGame(gamePGN)
	require.NoError(t, err)

	a, err := New(cfg, nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	assert.Equal(t, annotate.ThresholdsForElo(2075), a.thresholdsFor(game))
	require.NoError(t, a.Close())

	cfg.ScaleByElo = false
	a, err = New(cfg, nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	assert.Equal(t, annotate.DefaultThresholds, a.thresholdsFor(game))
	require.NoError(t, a.Close())

	bands := filepath.Join(cfg.DataDir, "bands.yaml")
	require.NoError(t, os.WriteFile(bands, []byte(strings.TrimSpace(`
bands:
  - {below: 0, excellent: 5, good: 10, inaccurate: 20, mistake: 30}
`)), 0o644))
	cfg.ThresholdsFile = bands
	a, err = New(cfg, nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	assert.Equal(t, annotate.Thresholds{Excellent: 5, Good: 10, Inaccurate: 20, Mistake: 30}, a.thresholdsFor(game))
	require.NoError(t, a.Close())
}

func TestAnalyzeWithoutGames(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:1"), nil, WithEngine(&fakeSearcher{}))
	require.NoError(t, err)
	defer a.Close()

	_, _, err = a.Analyze(context.Background(), "", nil)
	assert.True(t, errors.Is(err, pgnfile.ErrNoGames))
}
