// Package viewer is the terminal move-by-move viewer for an analysed game.
package viewer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/notnil/chess"

	"kibitz/internal/analysis"
	"kibitz/internal/annotate"
	"kibitz/internal/render"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	buttonStyle   = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	disabledStyle = buttonStyle.Foreground(lipgloss.Color("#555555")).BorderForeground(lipgloss.Color("#444444"))

	qualityColors = map[annotate.Quality]lipgloss.Color{
		annotate.Excellent:  lipgloss.Color("#3fa34d"),
		annotate.Good:       lipgloss.Color("#8cc265"),
		annotate.Inaccurate: lipgloss.Color("#e6b800"),
		annotate.Mistake:    lipgloss.Color("#e67e22"),
		annotate.Blunder:    lipgloss.Color("#d64541"),
	}
)

// Model shows position index 0..n of a report: 0 is the start, i the
// position after move i.
type Model struct {
	report    analysis.Report
	positions []*chess.Position
	mateScore int

	index int
	flip  bool

	keys  keyMap
	help  help.Model
	moves table.Model
	width int
}

func New(rep analysis.Report, mateScore int) (Model, error) {
	positions := make([]*chess.Position, rep.Plies()+1)
	for i := range positions {
		pos, err := rep.Position(i)
		if err != nil {
			return Model{}, fmt.Errorf("position %d: %w", i, err)
		}
		positions[i] = pos
	}

	rows := make([]table.Row, len(rep.Moves))
	for i, m := range rep.Moves {
		rows[i] = table.Row{
			moveLabel(m),
			m.Quality.String() + " " + m.Quality.Symbol(),
			strconv.Itoa(m.Loss),
		}
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Move", Width: 12},
			{Title: "Quality", Width: 14},
			{Title: "Loss", Width: 6},
		}),
		table.WithRows(rows),
		table.WithHeight(12),
	)

	return Model{
		report:    rep,
		positions: positions,
		mateScore: mateScore,
		keys:      defaultKeys(),
		help:      help.New(),
		moves:     t,
	}, nil
}

func (m Model) Init() tea.Cmd { return nil }

// Index of the displayed position.
func (m Model) Index() int { return m.index }

func (m Model) Flipped() bool { return m.flip }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.First):
			m.index = 0
		case key.Matches(msg, m.keys.Prev):
			if m.index > 0 {
				m.index--
			}
		case key.Matches(msg, m.keys.Next):
			if m.index < m.report.Plies() {
				m.index++
			}
		case key.Matches(msg, m.keys.Last):
			m.index = m.report.Plies()
		case key.Matches(msg, m.keys.Flip):
			m.flip = !m.flip
		}
		if m.index > 0 {
			m.moves.SetCursor(m.index - 1)
		} else {
			m.moves.SetCursor(0)
		}
	}
	return m, nil
}

func (m Model) View() string {
	var move *analysis.MoveReport
	if m.index > 0 {
		move = &m.report.Moves[m.index-1]
	}
	lastMove := ""
	if move != nil {
		lastMove = move.UCI
	}

	board := render.Text(m.positions[m.index], render.TextOptions{Flip: m.flip, LastMove: lastMove})
	body := lipgloss.JoinHorizontal(lipgloss.Top, board, "   ", m.moves.View())

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title()))
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(m.moveLines(move))
	sb.WriteString("\n")
	sb.WriteString(m.buttons())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) title() string {
	r := m.report
	return fmt.Sprintf("%s (%s) vs %s (%s)  %s", orUnknown(r.White), orUnknown(r.WhiteElo),
		orUnknown(r.Black), orUnknown(r.BlackElo), r.Result)
}

func (m Model) moveLines(move *analysis.MoveReport) string {
	eval := analysis.FormatEval(m.evalAt(m.index), m.mateScore)
	if move == nil {
		return fmt.Sprintf("Start position   eval %s   %d/%d", eval, m.index, m.report.Plies())
	}
	q := lipgloss.NewStyle().Foreground(qualityColors[move.Quality]).Bold(true).
		Render(move.Quality.String() + " " + move.Quality.Symbol())
	lines := []string{
		fmt.Sprintf("%s   %s   %d/%d", moveLabel(*move), q, m.index, m.report.Plies()),
		fmt.Sprintf("eval %s -> %s   loss %d cp", analysis.FormatEval(m.evalAt(m.index-1), m.mateScore), eval, move.Loss),
	}
	if move.BestUCI != "" && move.BestUCI != move.UCI {
		lines = append(lines, fmt.Sprintf("best %s (%s)", move.BestSAN, move.BestUCI))
	}
	if c := annotate.CleanComment(move.Comment); c != "" {
		lines = append(lines, dimStyle.Render(c))
	}
	return strings.Join(lines, "\n")
}

func (m Model) evalAt(i int) int {
	if i < 0 || i >= len(m.report.Evals) {
		return 0
	}
	return m.report.Evals[i]
}

// buttons is the first / previous / next / last bar; ends grey out.
func (m Model) buttons() string {
	atStart := m.index == 0
	atEnd := m.index == m.report.Plies()
	btn := func(label string, disabled bool) string {
		if disabled {
			return disabledStyle.Render(label)
		}
		return buttonStyle.Render(label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		btn("|<", atStart), btn("<", atStart), btn(">", atEnd), btn(">|", atEnd))
}

func moveLabel(m analysis.MoveReport) string {
	if m.Color == chess.White {
		return fmt.Sprintf("%d. %s", m.MoveNumber, m.SAN)
	}
	return fmt.Sprintf("%d... %s", m.MoveNumber, m.SAN)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

// Run blocks until the user quits.
func Run(rep analysis.Report, mateScore int) error {
	m, err := New(rep, mateScore)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
