package web

import (
	"context"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kibitz/internal/analysis"
	"kibitz/internal/annotate"
	"kibitz/internal/db"
	"kibitz/internal/engine"
	"kibitz/internal/pgnfile"
)

type tableEvaluator map[string]engine.Info

func (t tableEvaluator) Evaluate(ctx context.Context, fen string) (engine.Info, error) {
	key, err := analysis.PositionKey(fen)
	if err != nil {
		return engine.Info{}, err
	}
	return t[key], nil
}

func setup(t *testing.T) (*httptest.Server, *db.Store, int64) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "kibitz.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	game, err := pgnfile.ParseGame(`[White "alice"]
[Black "bob"]
[WhiteElo "1500"]
[BlackElo "1480"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`)
	require.NoError(t, err)
	pos := game.Positions()
	key := func(p *chess.Position) string {
		k, _ := analysis.PositionKey(p.String())
		return k
	}
	ev := tableEvaluator{
		key(pos[5]): {Score: engine.Score{CP: -40}, PV: []string{"d8e7"}},
		key(pos[6]): {Score: engine.Score{IsMate: true, Mate: 1}, PV: []string{"h5f7"}},
	}
	rep, err := (&analysis.Analyzer{Evaluator: ev}).Run(context.Background(), game, annotate.DefaultThresholds, nil)
	require.NoError(t, err)
	rep.Engine = "Stockfish"
	row, moves := rep.Rows()
	id, err := store.InsertAnalysis(context.Background(), row, moves)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(store, 10000, nil).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store, id
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestIndexListsAnalyses(t *testing.T) {
	srv, _, id := setup(t)
	resp, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "/analyses/"+itoa(id))
	assert.Contains(t, body, "Blunders")
}

func TestAnalysisPage(t *testing.T) {
	srv, _, id := setup(t)
	base := srv.URL + "/analyses/" + itoa(id)

	resp, body := get(t, base+"?ply=6")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "3... Nf6")
	assert.Contains(t, body, `class="blunder"`)
	assert.Contains(t, body, "best Qe7 (d8e7)")
	assert.Contains(t, body, "Position 6/7")
	assert.Contains(t, body, "sq light moved")

	// out of range plies are clamped.
	_, body = get(t, base+"?ply=99")
	assert.Contains(t, body, "Position 7/7")
	_, body = get(t, base+"?ply=-4")
	assert.Contains(t, body, "Position 0/7")
	assert.Contains(t, body, "Start position")
	_, body = get(t, base+"?ply=abc")
	assert.Contains(t, body, "Position 0/7")
}

func TestUnknownAnalysis(t *testing.T) {
	srv, _, _ := setup(t)
	for _, path := range []string{"/analyses/999", "/analyses/999/board.svg", "/analyses/nope", "/analyses/999/pgn"} {
		resp, _ := get(t, srv.URL+path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestDiagrams(t *testing.T) {
	srv, _, id := setup(t)
	base := srv.URL + "/analyses/" + itoa(id)

	resp, body := get(t, base+"/board.svg?ply=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<svg")

	resp, body = get(t, base+"/board.png?ply=7&size=100")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestDownloadPGN(t *testing.T) {
	srv, _, id := setup(t)
	resp, body := get(t, srv.URL+"/analyses/"+itoa(id)+"/pgn")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "analysis_"+itoa(id)+".pgn")
	assert.Contains(t, body, "[blunder ??] Best: d8e7")
}

func TestDelete(t *testing.T) {
	srv, store, id := setup(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Post(srv.URL+"/analyses/"+itoa(id)+"/delete", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	list, err := store.ListAnalyses(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	resp, err = client.Post(srv.URL+"/analyses/"+itoa(id)+"/delete", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBoardFromPositionFlip(t *testing.T) {
	pos := chess.StartingPosition()
	b := boardFromPosition(pos, "e2e4", false)
	assert.Equal(t, "a8", b[0][0].Square)
	assert.Equal(t, "♜", b[0][0].Glyph)
	assert.Equal(t, "sq light", b[0][0].Class)
	assert.Equal(t, "sq light moved", b[6][4].Class)

	f := boardFromPosition(pos, "", true)
	assert.Equal(t, "h1", f[0][0].Square)
	assert.Equal(t, "♖", f[0][0].Glyph)
}
