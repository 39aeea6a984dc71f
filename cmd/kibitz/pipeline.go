package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kibitz/internal/analysis"
	"kibitz/internal/annotate"
	"kibitz/internal/app"
	"kibitz/internal/viewer"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [user...]",
	Short: "Download a game from chess.com into the games dir",
	Long: `Without --game the most recent game of the first user that has one is
saved. With --game the --year/--month archive of each user is searched for
that game id.`,
	RunE: runFetch,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [pgn]",
	Short: "Annotate a PGN file; defaults to the newest file in the games dir",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

var viewCmd = &cobra.Command{
	Use:   "view [id]",
	Short: "Step through a stored analysis in the terminal",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runView,
}

var runCmd = &cobra.Command{
	Use:   "run [user]",
	Short: "Fetch the latest game, analyze it and open the viewer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPipeline,
}

func runFetch(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	game, _ := cmd.Flags().GetString("game")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.Fetch(cmd.Context(), app.FetchRequest{Users: args, Year: year, Month: month, GameID: game})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, rep, err := a.Analyze(cmd.Context(), path, logProgress(logger))
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), id, rep)
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	_, rep, err := a.Report(cmd.Context(), id)
	if err != nil {
		return err
	}
	return viewer.Run(rep, cfg.MateScore)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	users := args
	if len(users) == 0 && cfg.Username == "" {
		user, err := promptUsername(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		users = []string{user}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.Fetch(cmd.Context(), app.FetchRequest{Users: users})
	if err != nil {
		return err
	}
	id, rep, err := a.Analyze(cmd.Context(), path, logProgress(logger))
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), id, rep)
	return viewer.Run(rep, cfg.MateScore)
}

// promptUsername asks with a huh form on a terminal and reads one line
// otherwise.
func promptUsername(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		var user string
		err := huh.NewInput().
			Title("chess.com username").
			Value(&user).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return app.ErrNoUsername
				}
				return nil
			}).
			Run()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(user), nil
	}

	fmt.Fprint(out, "chess.com username: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	user := strings.TrimSpace(line)
	if user == "" {
		return "", app.ErrNoUsername
	}
	return user, nil
}

func logProgress(log *zap.Logger) analysis.Progress {
	return func(done, total int) {
		log.Info("analyzing positions", zap.Int("done", done), zap.Int("positions", total))
	}
}

func printSummary(w io.Writer, id int64, rep analysis.Report) {
	fmt.Fprintf(w, "analysis %d: %s (%s) vs %s (%s) %s, %d plies\n",
		id, rep.White, rep.WhiteElo, rep.Black, rep.BlackElo, rep.Result, rep.Plies())
	sum := rep.Summary()
	for _, q := range annotate.AllQualities() {
		fmt.Fprintf(w, "  %-10s %-2s white %2d  black %2d\n", q, q.Symbol(), sum.White[q], sum.Black[q])
	}
}
