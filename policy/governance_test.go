package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernancePolicy_CheckEmail(t *testing.T) {
	policy := NewGovernancePolicy(nil)

	t.Run("clean email is approved", func(t *testing.T) {
		email := "Subject: Quick question\n\nHi Jane, saw your team is growing. Worth a chat next week?\n\nBest"

		result := policy.CheckEmail(email)
		assert.True(t, result.Approved)
		assert.Empty(t, result.Issues)
	})

	t.Run("pricing talk is a critical stop", func(t *testing.T) {
		email := "Subject: Our pricing\n\nOur price beats anyone."

		result := policy.CheckEmail(email)
		assert.False(t, result.Approved)
		require.Len(t, result.Issues, 1, "multiple pricing keywords still raise one issue")
		assert.Equal(t, RuleNoPricingDiscussion, result.Issues[0].Rule)
		assert.Equal(t, SeverityCritical, result.Issues[0].Severity)
		assert.Equal(t, "Email discusses pricing without approval", result.Issues[0].Message)
	})

	t.Run("dollar sign counts as pricing", func(t *testing.T) {
		result := policy.CheckEmail("Subject: Offer\n\nSave $500 this month.")
		assert.False(t, result.Approved)
		assert.Equal(t, RuleNoPricingDiscussion, result.Issues[0].Rule)
	})

	t.Run("pricing match is case-insensitive", func(t *testing.T) {
		result := policy.CheckEmail("Subject: Hello\n\nLet's discuss PRICING options.")
		assert.False(t, result.Approved)
	})

	t.Run("overlength email is only a warning", func(t *testing.T) {
		email := "Subject: Hello\n\n" + strings.Repeat("na ", 400)

		result := policy.CheckEmail(email)
		assert.True(t, result.Approved, "warnings alone should not block")
		require.Len(t, result.Issues, 1)
		assert.Equal(t, RuleMaxLength, result.Issues[0].Rule)
		assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
		assert.Equal(t, "Email exceeds recommended length", result.Issues[0].Message)
	})

	t.Run("missing subject is only a warning", func(t *testing.T) {
		result := policy.CheckEmail("Hi Jane, quick note about your team.")
		assert.True(t, result.Approved)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, RuleMissingSubject, result.Issues[0].Rule)
		assert.Equal(t, "Email missing subject line", result.Issues[0].Message)
	})

	t.Run("subject match is case-insensitive", func(t *testing.T) {
		result := policy.CheckEmail("SUBJECT: Hello\n\nShort and sweet.")
		assert.Empty(t, result.Issues)
	})

	t.Run("all three rules can fire together", func(t *testing.T) {
		email := strings.Repeat("our price list ", 100)

		result := policy.CheckEmail(email)
		assert.False(t, result.Approved)
		require.Len(t, result.Issues, 3)

		rules := make([]string, len(result.Issues))
		for i, issue := range result.Issues {
			rules[i] = issue.Rule
		}
		assert.Contains(t, rules, RuleNoPricingDiscussion)
		assert.Contains(t, rules, RuleMaxLength)
		assert.Contains(t, rules, RuleMissingSubject)
	})
}

func TestGovernancePolicy_ExtendedRules(t *testing.T) {
	policy := NewGovernancePolicy(&GovernanceRules{
		PricingKeywords: []string{"Discount", "quote"},
		MaxEmailLength:  60,
	})

	t.Run("extra keywords block", func(t *testing.T) {
		result := policy.CheckEmail("Subject: Deal\n\nWe can offer a discount.")
		assert.False(t, result.Approved)
	})

	t.Run("built-in keywords still block", func(t *testing.T) {
		result := policy.CheckEmail("Subject: Deal\n\nNo fee for you.")
		assert.False(t, result.Approved)
	})

	t.Run("tighter length ceiling applies", func(t *testing.T) {
		assert.Equal(t, 60, policy.MaxEmailLength())

		result := policy.CheckEmail("Subject: Hello\n\nThis body runs a little past sixty characters total.")
		assert.True(t, result.Approved)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, RuleMaxLength, result.Issues[0].Rule)
	})

	t.Run("zero max length keeps the default", func(t *testing.T) {
		loose := NewGovernancePolicy(&GovernanceRules{})
		assert.Equal(t, DefaultMaxEmailLength, loose.MaxEmailLength())
	})
}
