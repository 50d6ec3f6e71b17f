package policy

import (
	"github.com/BurntSushi/toml"

	"github.com/teranos/cadence/errors"
)

// Rules is the on-disk rule file format. Entries extend the built-in
// rules rather than replacing them:
//
//	[escalation]
//	competitors = ["apollo", "zoominfo"]
//
//	[governance]
//	pricing_keywords = ["discount", "quote"]
//	max_email_length = 800
type Rules struct {
	Escalation EscalationRules `toml:"escalation"`
	Governance GovernanceRules `toml:"governance"`
}

// EscalationRules extends the escalation policy
type EscalationRules struct {
	Competitors []string `toml:"competitors"`
}

// GovernanceRules extends the governance policy
type GovernanceRules struct {
	PricingKeywords []string `toml:"pricing_keywords"`
	MaxEmailLength  int      `toml:"max_email_length"`
}

// LoadRules reads a TOML policy rule file
func LoadRules(path string) (*Rules, error) {
	var rules Rules
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return nil, errors.Wrapf(err, "failed to load policy rules from %s", path)
	}
	return &rules, nil
}

// Load builds both policies from an optional rule file. An empty path
// yields the built-in rules.
func Load(path string) (*EscalationPolicy, *GovernancePolicy, error) {
	if path == "" {
		return NewEscalationPolicy(nil), NewGovernancePolicy(nil), nil
	}

	rules, err := LoadRules(path)
	if err != nil {
		return nil, nil, err
	}

	return NewEscalationPolicy(&rules.Escalation), NewGovernancePolicy(&rules.Governance), nil
}
