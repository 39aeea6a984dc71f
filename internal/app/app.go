// Package app wires configuration, storage, the chess.com client and the
// engine pool into the fetch / analyze / view pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"kibitz/internal/analysis"
	"kibitz/internal/annotate"
	"kibitz/internal/chesscom"
	"kibitz/internal/config"
	"kibitz/internal/db"
	"kibitz/internal/engine"
	"kibitz/internal/pgnfile"
	"kibitz/internal/web"
)

var ErrNoUsername = errors.New("no chess.com username given")

// Searcher is the engine side of an analysis; the pool in production.
type Searcher interface {
	analysis.Searcher
	Name() string
	Close() error
}

type App struct {
	cfg   config.Config
	log   *zap.Logger
	store *db.Store
	games *chesscom.Client
	bands annotate.Bands
	mux   *http.ServeMux
	now   func() time.Time

	engineMu  sync.Mutex
	engine    Searcher
	newEngine func(ctx context.Context) (Searcher, error)

	closeOnce sync.Once
}

type Option func(*App)

// WithEngine replaces the engine pool, which is otherwise started on the
// first analysis.
func WithEngine(s Searcher) Option {
	return func(a *App) {
		a.newEngine = func(context.Context) (Searcher, error) { return s, nil }
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func New(cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var bands annotate.Bands
	if cfg.ThresholdsFile != "" {
		var err error
		if bands, err = annotate.LoadThresholds(cfg.ThresholdsFile); err != nil {
			return nil, err
		}
		log.Info("thresholds loaded", zap.String("path", cfg.ThresholdsFile), zap.Int("bands", len(bands)))
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		log:   log,
		store: store,
		games: chesscom.New(cfg.ChessCom, log.Named("chesscom")),
		bands: bands,
		now:   time.Now,
	}
	a.newEngine = a.startPool
	for _, opt := range opts {
		opt(a)
	}

	h := web.NewHandler(store, cfg.MateScore, log.Named("web"))
	a.mux = http.NewServeMux()
	h.RegisterRoutes(a.mux)
	return a, nil
}

func (a *App) Router() http.Handler {
	return a.mux
}

func (a *App) Config() config.Config {
	return a.cfg
}

type FetchRequest struct {
	Users []string
	Year  int
	Month int
	// GameID selects a game in the Year/Month archive; empty fetches the
	// most recent game of the first user that has one.
	GameID string
}

// Fetch downloads a game and saves it to the games dir, returning the path.
func (a *App) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	users := make([]string, 0, len(req.Users)+1)
	for _, u := range req.Users {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	if len(users) == 0 && a.cfg.Username != "" {
		users = append(users, a.cfg.Username)
	}
	if len(users) == 0 {
		return "", ErrNoUsername
	}

	var (
		game chesscom.Game
		err  error
	)
	if req.GameID == "" {
		for _, u := range users {
			if game, err = a.games.LatestGame(ctx, u); err == nil {
				break
			}
			a.log.Warn("no latest game", zap.String("user", u), zap.Error(err))
		}
	} else {
		if req.Year == 0 || req.Month < 1 || req.Month > 12 {
			return "", fmt.Errorf("game %s: year and month of the archive are required", req.GameID)
		}
		game, err = a.games.FindGame(ctx, users, req.Year, req.Month, req.GameID)
	}
	if err != nil {
		return "", err
	}

	path, err := pgnfile.Save(a.cfg.GamesDir, game.ID(), game.PGN)
	if err != nil {
		return "", err
	}
	a.log.Info("game saved",
		zap.String("url", game.URL),
		zap.String("white", game.White.Username),
		zap.String("black", game.Black.Username),
		zap.String("path", path))
	return path, nil
}

// Analyze annotates the game at path, or the newest game in the games dir
// when path is empty. The annotated PGN is written to the analyses dir and
// the analysis stored.
func (a *App) Analyze(ctx context.Context, path string, progress analysis.Progress) (int64, analysis.Report, error) {
	if path == "" {
		var err error
		if path, err = pgnfile.Latest(a.cfg.GamesDir); err != nil {
			return 0, analysis.Report{}, err
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, analysis.Report{}, err
	}
	game, err := pgnfile.ParseGame(string(raw))
	if err != nil {
		return 0, analysis.Report{}, fmt.Errorf("%s: %w", path, err)
	}

	searcher, err := a.searcher(ctx)
	if err != nil {
		return 0, analysis.Report{}, err
	}
	limit := engine.Limit{Movetime: a.cfg.Movetime, Depth: a.cfg.Depth}
	analyzer := &analysis.Analyzer{
		Evaluator: &analysis.CachedEvaluator{
			Store:  a.store,
			Engine: searcher,
			Name:   searcher.Name(),
			Limit:  limit,
			Log:    a.log,
		},
		Workers:    a.cfg.Workers,
		MateScore:  a.cfg.MateScore,
		DefaultElo: a.cfg.DefaultElo,
		Log:        a.log.Named("analysis"),
	}

	thresholds := a.thresholdsFor(game)
	a.log.Info("analysing game",
		zap.String("path", path),
		zap.Int("plies", len(game.Moves())),
		zap.String("engine", searcher.Name()),
		zap.Any("thresholds", thresholds))

	started := a.now()
	rep, err := analyzer.Run(ctx, game, thresholds, progress)
	if err != nil {
		return 0, analysis.Report{}, err
	}
	rep.Engine = searcher.Name()

	out, err := pgnfile.WriteAnalysis(a.cfg.AnalysesDir, a.now(), rep.Annotated)
	if err != nil {
		return 0, analysis.Report{}, err
	}

	row, moves := rep.Rows()
	row.SourceURL = sourceURL(game)
	row.PGN = string(raw)
	row.MovetimeMS = limit.Movetime.Milliseconds()
	row.Depth = limit.Depth
	row.OutputPath = out
	id, err := a.store.InsertAnalysis(ctx, row, moves)
	if err != nil {
		return 0, analysis.Report{}, err
	}
	a.log.Info("analysis stored",
		zap.Int64("id", id),
		zap.String("output", out),
		zap.Duration("took", a.now().Sub(started)))
	return id, rep, nil
}

// thresholdsFor prefers the configured bands file, then the built-in Elo
// bands, then the fixed defaults.
func (a *App) thresholdsFor(game *chess.Game) annotate.Thresholds {
	avg := annotate.AverageElo(tag(game, "WhiteElo"), tag(game, "BlackElo"), a.cfg.DefaultElo)
	switch {
	case len(a.bands) > 0:
		return a.bands.For(avg)
	case a.cfg.ScaleByElo:
		return annotate.ThresholdsForElo(avg)
	default:
		return annotate.DefaultThresholds
	}
}

// Report loads a stored analysis; id 0 means the latest one.
func (a *App) Report(ctx context.Context, id int64) (int64, analysis.Report, error) {
	var (
		row db.Analysis
		err error
	)
	if id == 0 {
		row, err = a.store.LatestAnalysis(ctx)
	} else {
		row, err = a.store.AnalysisByID(ctx, id)
	}
	if err != nil {
		return 0, analysis.Report{}, fmt.Errorf("load analysis %d: %w", id, err)
	}
	moves, err := a.store.MovesByAnalysis(ctx, row.ID)
	if err != nil {
		return 0, analysis.Report{}, err
	}
	rep, err := analysis.ReportFromRows(row, moves)
	return row.ID, rep, err
}

func (a *App) Analyses(ctx context.Context, limit int) ([]db.AnalysisSummary, error) {
	return a.store.ListAnalyses(ctx, limit)
}

func (a *App) searcher(ctx context.Context) (Searcher, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	s, err := a.newEngine(ctx)
	if err != nil {
		return nil, err
	}
	a.engine = s
	return s, nil
}

func (a *App) startPool(ctx context.Context) (Searcher, error) {
	pool, err := engine.NewPool(ctx, engine.PoolConfig{
		Path:    a.cfg.Engine.Path,
		Args:    a.cfg.Args,
		Workers: a.cfg.Workers,
		Hash:    a.cfg.Hash,
		Threads: a.cfg.Threads,
	}, a.log.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("start engine %s: %w", a.cfg.Engine.Path, err)
	}
	return pool, nil
}

func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.engineMu.Lock()
		if a.engine != nil {
			errs = append(errs, a.engine.Close())
		}
		a.engineMu.Unlock()
		errs = append(errs, a.store.Close())
	})
	return errors.Join(errs...)
}

func tag(game *chess.Game, key string) string {
	if tp := game.GetTagPair(key); tp != nil {
		return tp.Value
	}
	return ""
}

// sourceURL is the chess.com Link tag, or Site when it holds a URL.
func sourceURL(game *chess.Game) string {
	if link := tag(game, "Link"); link != "" {
		return link
	}
	if site := tag(game, "Site"); strings.HasPrefix(site, "http") {
		return site
	}
	return ""
}
