// Package policy implements the escalation and governance rules applied to
// qualification outcomes and generated outreach emails. Built-in rules can
// be extended through a TOML rule file.
package policy

import (
	"fmt"
	"strings"

	"github.com/teranos/cadence/sales"
)

// DefaultCompetitors force human review when they appear in a company name
// or in qualification reasoning
var DefaultCompetitors = []string{"salesforce", "hubspot", "outreach", "salesloft"}

// EscalationCheck is the outcome of an escalation review
type EscalationCheck struct {
	Escalated bool   `json:"escalated"`
	Reason    string `json:"reason,omitempty"`
}

// EscalationPolicy decides when a qualification outcome needs a human
type EscalationPolicy struct {
	competitors []string
}

// NewEscalationPolicy builds a policy from the built-in competitor list,
// extended by any configured rules. nil rules means built-ins only.
func NewEscalationPolicy(rules *EscalationRules) *EscalationPolicy {
	competitors := append([]string{}, DefaultCompetitors...)
	if rules != nil {
		competitors = mergeKeywords(competitors, rules.Competitors)
	}
	return &EscalationPolicy{competitors: competitors}
}

// Check reviews a qualification outcome against the escalation rules.
// Competitor mentions are matched case-insensitively across the company
// name and the reasoning text; the first hit wins. Missing industry or
// company size escalates too, and that reason takes precedence over a
// competitor mention.
func (p *EscalationPolicy) Check(lead *sales.Lead, reasoning string) EscalationCheck {
	var check EscalationCheck

	haystack := strings.ToLower(lead.CompanyName + " " + reasoning)
	for _, competitor := range p.competitors {
		if strings.Contains(haystack, competitor) {
			check.Escalated = true
			check.Reason = fmt.Sprintf("Competitor '%s' mentioned", competitor)
			break
		}
	}

	if lead.Industry == "" || lead.CompanySize == "" {
		check.Escalated = true
		check.Reason = "Missing critical lead data"
	}

	return check
}

// Competitors returns the active competitor list
func (p *EscalationPolicy) Competitors() []string {
	return append([]string{}, p.competitors...)
}

// mergeKeywords appends normalized extras that are not already present
func mergeKeywords(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, keyword := range base {
		seen[strings.ToLower(keyword)] = true
	}

	merged := append([]string{}, base...)
	for _, keyword := range extra {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" || seen[keyword] {
			continue
		}
		seen[keyword] = true
		merged = append(merged, keyword)
	}

	return merged
}
