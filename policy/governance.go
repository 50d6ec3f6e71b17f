package policy

import "strings"

// Issue severities
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Governance rule names
const (
	RuleNoPricingDiscussion = "no_pricing_discussion"
	RuleMaxLength           = "max_length"
	RuleMissingSubject      = "missing_subject"
)

// DefaultPricingKeywords are a hard stop: outbound email may not discuss
// pricing without approval
var DefaultPricingKeywords = []string{"price", "pricing", "cost", "$", "dollar", "payment", "fee"}

// DefaultMaxEmailLength is the advisory length ceiling for outreach copy
const DefaultMaxEmailLength = 1000

// GovernanceIssue describes one rule violation found in an email
type GovernanceIssue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// GovernanceResult is the outcome of a governance review. Approved means
// no critical issues; warnings pass.
type GovernanceResult struct {
	Approved bool              `json:"approved"`
	Issues   []GovernanceIssue `json:"issues,omitempty"`
}

// GovernancePolicy reviews outreach email content before it can be
// attached to a lead
type GovernancePolicy struct {
	pricingKeywords []string
	maxEmailLength  int
}

// NewGovernancePolicy builds a policy from the built-in rules, extended by
// any configured rules. nil rules means built-ins only.
func NewGovernancePolicy(rules *GovernanceRules) *GovernancePolicy {
	keywords := append([]string{}, DefaultPricingKeywords...)
	maxLength := DefaultMaxEmailLength
	if rules != nil {
		keywords = mergeKeywords(keywords, rules.PricingKeywords)
		if rules.MaxEmailLength > 0 {
			maxLength = rules.MaxEmailLength
		}
	}
	return &GovernancePolicy{pricingKeywords: keywords, maxEmailLength: maxLength}
}

// CheckEmail reviews email content against the governance rules. Any
// pricing keyword raises a single critical issue; overlength copy and a
// missing subject line raise warnings.
func (p *GovernancePolicy) CheckEmail(email string) GovernanceResult {
	var issues []GovernanceIssue
	lowered := strings.ToLower(email)

	for _, keyword := range p.pricingKeywords {
		if strings.Contains(lowered, keyword) {
			issues = append(issues, GovernanceIssue{
				Rule:     RuleNoPricingDiscussion,
				Severity: SeverityCritical,
				Message:  "Email discusses pricing without approval",
			})
			break
		}
	}

	if len(email) > p.maxEmailLength {
		issues = append(issues, GovernanceIssue{
			Rule:     RuleMaxLength,
			Severity: SeverityWarning,
			Message:  "Email exceeds recommended length",
		})
	}

	if !strings.Contains(lowered, "subject:") {
		issues = append(issues, GovernanceIssue{
			Rule:     RuleMissingSubject,
			Severity: SeverityWarning,
			Message:  "Email missing subject line",
		})
	}

	approved := true
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			approved = false
			break
		}
	}

	return GovernanceResult{Approved: approved, Issues: issues}
}

// MaxEmailLength returns the active length ceiling
func (p *GovernancePolicy) MaxEmailLength() int {
	return p.maxEmailLength
}
