package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kibitz/internal/analysis"
	"kibitz/internal/db"
	"kibitz/internal/render"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored analyses on KIBITZ_LISTEN_ADDR",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List stored analyses",
	Args:  cobra.NoArgs,
	RunE:  runGames,
}

var renderCmd = &cobra.Command{
	Use:   "render [id]",
	Short: "Draw one position of a stored analysis as svg, png or text",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("kibitz listening", zap.String("addr", cfg.ListenAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runGames(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Analyses(cmd.Context(), limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), analysesTable(list))
	return nil
}

func analysesTable(list []db.AnalysisSummary) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "White", "Black", "Avg Elo", "Result", "Plies", "Blunders", "Engine", "Analysed"})
	for _, s := range list {
		created := s.CreatedAt
		if ts, ok := db.ParseTime(s.CreatedAt); ok {
			created = humanize.Time(ts)
		}
		t.AppendRow(table.Row{s.ID, s.White, s.Black, s.AvgElo, s.Result, s.Plies, s.Blunders, s.Engine, created})
	}
	if len(list) == 0 {
		t.AppendFooter(table.Row{"", "no analyses yet"})
	}
	return t.Render()
}

func runRender(cmd *cobra.Command, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	ply, _ := cmd.Flags().GetInt("ply")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	size, _ := cmd.Flags().GetInt("size")
	flip, _ := cmd.Flags().GetBool("flip")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	_, rep, err := a.Report(cmd.Context(), id)
	if err != nil {
		return err
	}
	if ply < 0 || ply > rep.Plies() {
		ply = rep.Plies()
	}

	draw := func(w io.Writer) error {
		return drawPosition(w, rep, ply, format, size, flip)
	}
	if output == "" {
		return draw(cmd.OutOrStdout())
	}
	if err := writeFile(output, draw); err != nil {
		return err
	}
	logger.Info("position rendered", zap.Int("ply", ply), zap.String("path", output))
	return nil
}

// writeFile creates path and hands it to write; a failed close is reported
// like a failed write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func drawPosition(w io.Writer, rep analysis.Report, ply int, format string, size int, flip bool) error {
	pos, err := rep.Position(ply)
	if err != nil {
		return err
	}
	last := rep.LastMove(ply)
	switch format {
	case "svg":
		return render.SVG(w, pos, last, flip)
	case "png":
		return render.PNG(w, pos, size, last, flip)
	case "text":
		_, err := fmt.Fprintln(w, render.Text(pos, render.TextOptions{Flip: flip, LastMove: last, Plain: true}))
		return err
	default:
		return fmt.Errorf("unknown format %q (want svg, png or text)", format)
	}
}

// parseID reads the optional analysis id argument; 0 means the latest.
func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid analysis id %q", args[0])
	}
	return id, nil
}
