package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Score is relative to the side to move.
type Score struct {
	CP     int
	Mate   int
	IsMate bool
}

func (s Score) String() string {
	if s.IsMate {
		return fmt.Sprintf("mate %d", s.Mate)
	}
	return fmt.Sprintf("cp %d", s.CP)
}

// Relative folds mate scores into centipawns: mate in n is mateScore-n,
// being mated in n is -mateScore+n, already mated is -mateScore.
func (s Score) Relative(mateScore int) int {
	if !s.IsMate {
		return s.CP
	}
	switch {
	case s.Mate > 0:
		return mateScore - s.Mate
	case s.Mate < 0:
		return -mateScore - s.Mate
	default:
		return -mateScore
	}
}

type Info struct {
	Depth    int
	Score    Score
	PV       []string
	BestMove string
}

// Best is the first PV move, or the bestmove reply when no PV was sent.
func (i Info) Best() string {
	if len(i.PV) > 0 {
		return i.PV[0]
	}
	return i.BestMove
}

// Limit bounds a search. Depth wins when both are set.
type Limit struct {
	Movetime time.Duration
	Depth    int
}

func (l Limit) goCommand() string {
	if l.Depth > 0 {
		return fmt.Sprintf("go depth %d", l.Depth)
	}
	ms := l.Movetime.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	return fmt.Sprintf("go movetime %d", ms)
}

var (
	// depthTimeout bounds a depth search; movetime searches get
	// Movetime+searchGrace. stopWait is how long a stopped search may take
	// to print its bestmove.
	depthTimeout = 60 * time.Second
	searchGrace  = 10 * time.Second
	stopWait     = 2 * time.Second
)

// errStopTimeout marks an engine that did not acknowledge stop; it may
// still print the bestmove of the abandoned search.
var errStopTimeout = errors.New("engine did not stop")

func (l Limit) timeout() time.Duration {
	if l.Depth > 0 {
		return depthTimeout
	}
	return l.Movetime + searchGrace
}

// Analyse searches fen and returns the deepest scored info line seen
// before bestmove.
func (e *UCIEngine) Analyse(ctx context.Context, fen string, limit Limit) (Info, error) {
	if err := e.Send("position fen " + fen); err != nil {
		return Info{}, err
	}
	if err := e.Send(limit.goCommand()); err != nil {
		return Info{}, err
	}

	var info Info
	deadline := time.Now().Add(limit.timeout())
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return Info{}, e.abort(ctx, fmt.Errorf("search timed out after %s", limit.timeout()))
		}
		line, err := e.readLineTimeout(ctx, left)
		if err != nil {
			if ctx.Err() != nil {
				return Info{}, e.abort(context.Background(), ctx.Err())
			}
			if errors.Is(err, errReadTimeout) {
				continue
			}
			return Info{}, err
		}
		if strings.HasPrefix(line, "bestmove") {
			parts := strings.Fields(line)
			if len(parts) >= 2 && parts[1] != "(none)" {
				info.BestMove = parts[1]
			}
			return info, nil
		}
		parsed, ok := parseInfoLine(line)
		if !ok || parsed.Depth < info.Depth {
			continue
		}
		info.Depth = parsed.Depth
		info.Score = parsed.Score
		if len(parsed.PV) > 0 {
			info.PV = parsed.PV
		}
	}
}

// abort stops a running search and drains its bestmove so the engine is
// usable for the next position. When the drain fails the error also wraps
// errStopTimeout and the engine must not be reused.
func (e *UCIEngine) abort(ctx context.Context, cause error) error {
	if err := e.Send("stop"); err != nil {
		return fmt.Errorf("%w (%w: %v)", cause, errStopTimeout, err)
	}
	if _, err := e.ReadUntilPrefix(ctx, "bestmove", stopWait); err != nil {
		return fmt.Errorf("%w (%w: %v)", cause, errStopTimeout, err)
	}
	return cause
}

// parseInfoLine extracts depth, score and pv from a UCI info line. Lines
// without a score, bound scores and multipv lines other than the first are
// rejected.
func parseInfoLine(line string) (Info, bool) {
	if !strings.HasPrefix(line, "info ") {
		return Info{}, false
	}
	parts := strings.Fields(line)
	var info Info
	haveScore := false
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					info.Depth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if parts[i+1] != "1" {
					return Info{}, false
				}
				i++
			}
		case "score":
			if i+2 >= len(parts) {
				return Info{}, false
			}
			v, err := strconv.Atoi(parts[i+2])
			if err != nil {
				return Info{}, false
			}
			switch parts[i+1] {
			case "cp":
				info.Score = Score{CP: v}
			case "mate":
				info.Score = Score{Mate: v, IsMate: true}
			default:
				return Info{}, false
			}
			haveScore = true
			i += 2
			if i+1 < len(parts) && (parts[i+1] == "lowerbound" || parts[i+1] == "upperbound") {
				return Info{}, false
			}
		case "pv":
			info.PV = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		case "string":
			i = len(parts)
		}
	}
	if !haveScore {
		return Info{}, false
	}
	return info, true
}
