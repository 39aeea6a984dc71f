package web

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"kibitz/internal/analysis"
	"kibitz/internal/annotate"
	"kibitz/internal/db"
	"kibitz/internal/render"
)

const maxPNGSize = 1200

type IndexView struct {
	Rows []db.AnalysisSummary
}

type MoveRow struct {
	Ply     int
	Label   string
	Quality string
	Symbol  string
	Loss    int
	Current bool
}

type SummaryRow struct {
	Quality string
	Symbol  string
	White   int
	Black   int
}

type AnalysisView struct {
	ID       int64
	White    string
	Black    string
	WhiteElo string
	BlackElo string
	Result   string
	Engine   string
	Created  string

	Ply   int
	Plies int
	Prev  int
	Next  int
	Flip  bool
	Board [][]SquareView

	Move       *analysis.MoveReport
	MoveLabel  string
	EvalBefore int
	EvalAfter  int

	Moves   []MoveRow
	Summary []SummaryRow
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListAnalyses(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.render(w, "index", IndexView{Rows: rows})
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, rep, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	ply := parsePly(r, rep.Plies())
	flip := r.URL.Query().Get("flip") == "1"
	pos, err := rep.Position(ply)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := AnalysisView{
		ID:       a.ID,
		White:    a.White,
		Black:    a.Black,
		WhiteElo: a.WhiteElo,
		BlackElo: a.BlackElo,
		Result:   a.Result,
		Engine:   a.Engine,
		Created:  ago(a.CreatedAt),
		Ply:      ply,
		Plies:    rep.Plies(),
		Prev:     max(ply-1, 0),
		Next:     min(ply+1, rep.Plies()),
		Flip:     flip,
	}
	view.EvalAfter = rep.Evals[ply]
	lastMove := ""
	if ply > 0 {
		m := rep.Moves[ply-1]
		view.Move = &m
		view.MoveLabel = moveLabel(m)
		view.EvalBefore = rep.Evals[ply-1]
		lastMove = m.UCI
	}
	view.Board = boardFromPosition(pos, lastMove, flip)

	view.Moves = make([]MoveRow, len(rep.Moves))
	for i, m := range rep.Moves {
		view.Moves[i] = MoveRow{
			Ply:     m.Ply,
			Label:   moveLabel(m),
			Quality: m.Quality.String(),
			Symbol:  m.Quality.Symbol(),
			Loss:    m.Loss,
			Current: m.Ply == ply,
		}
	}
	sum := rep.Summary()
	for _, q := range annotate.AllQualities() {
		view.Summary = append(view.Summary, SummaryRow{
			Quality: q.String(),
			Symbol:  q.Symbol(),
			White:   sum.White[q],
			Black:   sum.Black[q],
		})
	}
	h.render(w, "analysis", view)
}

func (h *Handler) handleBoardSVG(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	ply := parsePly(r, rep.Plies())
	pos, err := rep.Position(ply)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := render.SVG(w, pos, rep.LastMove(ply), r.URL.Query().Get("flip") == "1"); err != nil {
		h.log.Error("render svg", zap.Error(err))
	}
}

func (h *Handler) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	ply := parsePly(r, rep.Plies())
	pos, err := rep.Position(ply)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	size := render.DefaultPNGSize
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		size = min(max(v, render.MinPNGSize), maxPNGSize)
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.PNG(w, pos, size, rep.LastMove(ply), r.URL.Query().Get("flip") == "1"); err != nil {
		h.log.Error("render png", zap.Error(err))
	}
}

func (h *Handler) handlePGN(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=analysis_%d.pgn", a.ID))
	_, _ = w.Write([]byte(a.AnnotatedPGN))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.store.DeleteAnalysis(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.log.Info("analysis deleted", zap.Int64("id", id))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// loadReport writes the error response itself and reports whether the
// handler should continue.
func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (db.Analysis, analysis.Report, bool) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return db.Analysis{}, analysis.Report{}, false
	}
	a, err := h.store.AnalysisByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return db.Analysis{}, analysis.Report{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return db.Analysis{}, analysis.Report{}, false
	}
	moves, err := h.store.MovesByAnalysis(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return db.Analysis{}, analysis.Report{}, false
	}
	rep, err := analysis.ReportFromRows(a, moves)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return db.Analysis{}, analysis.Report{}, false
	}
	return a, rep, true
}

// parsePly clamps the ply query parameter to [0, n]; a missing or bad
// value shows the start.
func parsePly(r *http.Request, n int) int {
	ply, err := strconv.Atoi(r.URL.Query().Get("ply"))
	if err != nil {
		return 0
	}
	return min(max(ply, 0), n)
}

func moveLabel(m analysis.MoveReport) string {
	if m.Color == chess.White {
		return fmt.Sprintf("%d. %s", m.MoveNumber, m.SAN)
	}
	return fmt.Sprintf("%d... %s", m.MoveNumber, m.SAN)
}
