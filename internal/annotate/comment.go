package annotate

import (
	"regexp"
	"strings"
)

var clockCommand = regexp.MustCompile(`\[%clk [^\]]+\]\s*`)

// CleanComment drops chess.com clock commands from a move comment.
func CleanComment(s string) string {
	return strings.TrimSpace(clockCommand.ReplaceAllString(s, ""))
}

// Comment builds the annotation for a move, e.g. "[mistake ?!] Best: g1f3",
// keeping whatever the existing comment said apart from clock times.
func Comment(existing string, q Quality, best, played string) string {
	c := "[" + q.String() + " " + q.Symbol() + "]"
	if best != "" && best != played {
		c += " Best: " + best
	}
	if cleaned := CleanComment(existing); cleaned != "" {
		return cleaned + " " + c
	}
	return c
}
