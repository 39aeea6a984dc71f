// Package web serves stored analyses as browsable pages and diagrams.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"kibitz/internal/analysis"
	"kibitz/internal/db"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Handler struct {
	store     *db.Store
	log       *zap.Logger
	mateScore int

	tpl *template.Template
}

func NewHandler(store *db.Store, mateScore int, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if mateScore <= 0 {
		mateScore = analysis.DefaultMateScore
	}
	funcs := template.FuncMap{
		"ago": ago,
		"eval": func(cp int) string {
			return analysis.FormatEval(cp, mateScore)
		},
	}
	tpl := template.Must(template.New("base").Funcs(funcs).ParseFS(templatesFS, "templates/*.html"))
	return &Handler{
		store:     store,
		log:       log,
		mateScore: mateScore,
		tpl:       tpl,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /analyses/{id}", h.handleAnalysis)
	mux.HandleFunc("GET /analyses/{id}/board.svg", h.handleBoardSVG)
	mux.HandleFunc("GET /analyses/{id}/board.png", h.handleBoardPNG)
	mux.HandleFunc("GET /analyses/{id}/pgn", h.handlePGN)
	mux.HandleFunc("POST /analyses/{id}/delete", h.handleDelete)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tpl.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// ago humanizes the sqlite timestamps written by the store.
func ago(ts string) string {
	if t, ok := db.ParseTime(ts); ok {
		return humanize.Time(t)
	}
	return ts
}
