package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/cadence/internal/util"
)

// Decision is a parsed qualification outcome
type Decision string

const (
	DecisionQualified    Decision = "QUALIFIED"
	DecisionDisqualified Decision = "DISQUALIFIED"
)

var (
	scoreRe     = regexp.MustCompile(`[Ss]core:\s*(\d+)`)
	reasoningRe = regexp.MustCompile(`(?s)[Rr]easoning:\s*(.+?)(?:\n|$)`)
)

// ParseQualification extracts the score, decision, and reasoning from
// model output. It is total: malformed text degrades to defaults (score
// 50, decision by threshold, reasoning truncated from the raw text)
// rather than failing.
func ParseQualification(text string) (int, Decision, string) {
	score := 50
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		// \d+ only fails Atoi on range, where it returns MaxInt; the
		// clamp handles both
		score, _ = strconv.Atoi(m[1])
	}
	score = util.ClampInt(score, 0, 100)

	// DISQUALIFIED anywhere wins; QUALIFIED is its substring so the
	// order of checks matters
	upper := strings.ToUpper(text)
	var decision Decision
	switch {
	case strings.Contains(upper, "DISQUALIFIED"):
		decision = DecisionDisqualified
	case strings.Contains(upper, "QUALIFIED"):
		decision = DecisionQualified
	case score >= 60:
		decision = DecisionQualified
	default:
		decision = DecisionDisqualified
	}

	reasoning := ""
	if m := reasoningRe.FindStringSubmatch(text); m != nil {
		reasoning = strings.TrimSpace(m[1])
	} else {
		runes := []rune(text)
		if len(runes) > 200 {
			runes = runes[:200]
		}
		reasoning = string(runes)
	}

	return score, decision, reasoning
}
