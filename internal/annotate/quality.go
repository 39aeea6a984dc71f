// Package annotate turns centipawn losses into move-quality labels and
// writes them back into PGN.
package annotate

import (
	"fmt"
	"strconv"
	"strings"
)

type Quality int

const (
	Excellent Quality = iota
	Good
	Inaccurate
	Mistake
	Blunder
)

var qualities = [...]struct {
	label  string
	symbol string
}{
	Excellent:  {"excellent", "!!"},
	Good:       {"good", "!"},
	Inaccurate: {"inaccurate", "?"},
	Mistake:    {"mistake", "?!"},
	Blunder:    {"blunder", "??"},
}

func AllQualities() []Quality {
	return []Quality{Excellent, Good, Inaccurate, Mistake, Blunder}
}

func (q Quality) String() string {
	if q < Excellent || q > Blunder {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualities[q].label
}

func (q Quality) Symbol() string {
	if q < Excellent || q > Blunder {
		return ""
	}
	return qualities[q].symbol
}

func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for q, v := range qualities {
		if v.label == s {
			return Quality(q), nil
		}
	}
	return 0, fmt.Errorf("unknown move quality %q", s)
}

// Thresholds are inclusive upper bounds of centipawn loss. Anything above
// Mistake is a blunder.
type Thresholds struct {
	Excellent  int `yaml:"excellent" json:"excellent"`
	Good       int `yaml:"good" json:"good"`
	Inaccurate int `yaml:"inaccurate" json:"inaccurate"`
	Mistake    int `yaml:"mistake" json:"mistake"`
}

var (
	beginnerThresholds     = Thresholds{Excellent: 50, Good: 150, Inaccurate: 400, Mistake: 1000}
	intermediateThresholds = Thresholds{Excellent: 40, Good: 120, Inaccurate: 300, Mistake: 700}
	advancedThresholds     = Thresholds{Excellent: 30, Good: 100, Inaccurate: 250, Mistake: 500}
	expertThresholds       = Thresholds{Excellent: 20, Good: 80, Inaccurate: 200, Mistake: 400}

	// DefaultThresholds apply when moves are not scaled by rating.
	DefaultThresholds = intermediateThresholds
)

// ThresholdsForElo is stricter the stronger the players are.
func ThresholdsForElo(avg int) Thresholds {
	switch {
	case avg < 1000:
		return beginnerThresholds
	case avg < 1500:
		return intermediateThresholds
	case avg < 2000:
		return advancedThresholds
	default:
		return expertThresholds
	}
}

func (t Thresholds) Validate() error {
	if t.Excellent < 0 || t.Good < t.Excellent || t.Inaccurate < t.Good || t.Mistake < t.Inaccurate {
		return fmt.Errorf("thresholds must be non-negative and ascending: %+v", t)
	}
	return nil
}

func Classify(loss int, t Thresholds) Quality {
	switch {
	case loss <= t.Excellent:
		return Excellent
	case loss <= t.Good:
		return Good
	case loss <= t.Inaccurate:
		return Inaccurate
	case loss <= t.Mistake:
		return Mistake
	default:
		return Blunder
	}
}

// AverageElo averages the WhiteElo and BlackElo tag values. If either is
// missing or not a number both fall back to the given rating.
func AverageElo(white, black string, fallback int) int {
	w, errW := strconv.Atoi(strings.TrimSpace(white))
	b, errB := strconv.Atoi(strings.TrimSpace(black))
	if errW != nil || errB != nil {
		w, b = fallback, fallback
	}
	return (w + b) / 2
}
