package sales

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"jane@acme.com", true},
		{"jane.doe+crm@acme-corp.io", true},
		{"j_d%test@sub.example.co", true},
		{"", false},
		{"jane", false},
		{"jane@", false},
		{"@acme.com", false},
		{"jane@acme", false},
		{"jane@acme.c", false},
		{"jane doe@acme.com", false},
	}

	for _, tt := range tests {
		if got := ValidateEmail(tt.email); got != tt.valid {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.valid)
		}
	}
}

func TestValidateLead(t *testing.T) {
	t.Run("complete lead passes", func(t *testing.T) {
		lead := NewLead("Acme Robotics", "jane@acme.com")
		lead.Industry = "SaaS"
		lead.CompanySize = "50-500"
		lead.ContactName = "Jane Doe"

		result := ValidateLead(lead)
		if !result.Valid {
			t.Errorf("expected valid lead, got issues: %+v", result.Issues)
		}
		if len(result.Issues) != 0 {
			t.Errorf("expected no issues, got %d", len(result.Issues))
		}
	})

	t.Run("missing company name is critical", func(t *testing.T) {
		lead := NewLead("", "jane@acme.com")

		result := ValidateLead(lead)
		if result.Valid {
			t.Error("expected invalid lead")
		}
		if len(result.Issues) != 1 {
			t.Fatalf("expected 1 issue, got %d", len(result.Issues))
		}
		issue := result.Issues[0]
		if issue.Field != "company_name" || issue.Issue != IssueMissingRequiredField || issue.Severity != SeverityCritical {
			t.Errorf("unexpected issue: %+v", issue)
		}
	})

	t.Run("missing email is critical", func(t *testing.T) {
		lead := NewLead("Acme Robotics", "")

		result := ValidateLead(lead)
		if result.Valid {
			t.Error("expected invalid lead")
		}
		if result.Issues[0].Issue != IssueMissingRequiredField {
			t.Errorf("unexpected issue: %+v", result.Issues[0])
		}
	})

	t.Run("malformed email is critical", func(t *testing.T) {
		lead := NewLead("Acme Robotics", "not-an-email")

		result := ValidateLead(lead)
		if result.Valid {
			t.Error("expected invalid lead")
		}
		if result.Issues[0].Issue != IssueInvalidEmailFormat {
			t.Errorf("unexpected issue: %+v", result.Issues[0])
		}
	})

	t.Run("unknown company size is only a warning", func(t *testing.T) {
		lead := NewLead("Acme Robotics", "jane@acme.com")
		lead.CompanySize = "huge"

		result := ValidateLead(lead)
		if !result.Valid {
			t.Error("warnings should not invalidate a lead")
		}
		if len(result.Issues) != 1 {
			t.Fatalf("expected 1 issue, got %d", len(result.Issues))
		}
		issue := result.Issues[0]
		if issue.Issue != IssueInvalidValue || issue.Severity != SeverityWarning {
			t.Errorf("unexpected issue: %+v", issue)
		}
		if !strings.Contains(issue.Detail, "2000+") {
			t.Errorf("detail should list accepted sizes, got %q", issue.Detail)
		}
	})

	t.Run("empty company size is fine", func(t *testing.T) {
		lead := NewLead("Acme Robotics", "jane@acme.com")

		result := ValidateLead(lead)
		if !result.Valid || len(result.Issues) != 0 {
			t.Errorf("expected clean result, got %+v", result.Issues)
		}
	})
}

func TestCheckDuplicates(t *testing.T) {
	t.Run("no duplicates", func(t *testing.T) {
		leads := []*Lead{
			NewLead("Acme", "a@acme.com"),
			NewLead("Globex", "b@globex.com"),
		}
		if dups := CheckDuplicates(leads); len(dups) != 0 {
			t.Errorf("expected no duplicates, got %+v", dups)
		}
	})

	t.Run("duplicate emails are case-insensitive", func(t *testing.T) {
		leads := []*Lead{
			NewLead("Acme", "jane@acme.com"),
			NewLead("Globex", "b@globex.com"),
			NewLead("Acme Inc", "Jane@ACME.com"),
		}

		dups := CheckDuplicates(leads)
		if len(dups) != 1 {
			t.Fatalf("expected 1 duplicate group, got %d", len(dups))
		}
		if dups[0].Email != "jane@acme.com" {
			t.Errorf("expected normalized email, got %q", dups[0].Email)
		}
		if dups[0].Indices[0] != 0 || dups[0].Indices[1] != 2 {
			t.Errorf("expected indices [0 2], got %v", dups[0].Indices)
		}
	})

	t.Run("triple occurrence yields two groups", func(t *testing.T) {
		leads := []*Lead{
			NewLead("Acme", "jane@acme.com"),
			NewLead("Acme Corp", "jane@acme.com"),
			NewLead("Acme Inc", "jane@acme.com"),
		}

		dups := CheckDuplicates(leads)
		if len(dups) != 2 {
			t.Fatalf("expected 2 duplicate groups, got %d", len(dups))
		}
		if dups[0].Indices[1] != 1 || dups[1].Indices[1] != 2 {
			t.Errorf("unexpected groups: %+v", dups)
		}
	})

	t.Run("empty emails are ignored", func(t *testing.T) {
		leads := []*Lead{
			NewLead("Acme", ""),
			NewLead("Globex", ""),
		}
		if dups := CheckDuplicates(leads); len(dups) != 0 {
			t.Errorf("blank emails should not pair up, got %+v", dups)
		}
	})
}

func TestQualityScore(t *testing.T) {
	valid := LeadValidation{Valid: true}
	invalid := LeadValidation{Valid: false, Issues: []ValidationIssue{
		{Field: "contact_email", Issue: IssueMissingRequiredField, Severity: SeverityCritical},
	}}
	warned := LeadValidation{Valid: true, Issues: []ValidationIssue{
		{Field: "company_size", Issue: IssueInvalidValue, Severity: SeverityWarning},
	}}

	t.Run("empty input scores zero", func(t *testing.T) {
		if got := QualityScore(nil); got != 0 {
			t.Errorf("QualityScore(nil) = %v, want 0", got)
		}
	})

	t.Run("all valid scores 100", func(t *testing.T) {
		if got := QualityScore([]LeadValidation{valid, valid, valid}); got != 100 {
			t.Errorf("got %v, want 100", got)
		}
	})

	t.Run("warnings shave half a point each", func(t *testing.T) {
		results := []LeadValidation{valid, valid, valid, valid, valid, valid, warned, warned, invalid, invalid}
		// 8 valid of 10 = 80, minus 2 warnings * 0.5 = 79
		if got := QualityScore(results); got != 79 {
			t.Errorf("got %v, want 79", got)
		}
	})

	t.Run("warning penalty caps at 20", func(t *testing.T) {
		results := make([]LeadValidation, 0, 100)
		for i := 0; i < 100; i++ {
			results = append(results, warned)
		}
		// 100% valid minus capped penalty
		if got := QualityScore(results); got != 80 {
			t.Errorf("got %v, want 80", got)
		}
	})

	t.Run("score floors at zero", func(t *testing.T) {
		invalidWithWarning := LeadValidation{Valid: false, Issues: []ValidationIssue{
			{Field: "contact_email", Issue: IssueMissingRequiredField, Severity: SeverityCritical},
			{Field: "company_size", Issue: IssueInvalidValue, Severity: SeverityWarning},
		}}
		// 0% valid minus warning penalty would go negative
		if got := QualityScore([]LeadValidation{invalidWithWarning, invalid}); got != 0 {
			t.Errorf("got %v, want 0", got)
		}
	})
}

func TestRunValidationSuite(t *testing.T) {
	complete := NewLead("Acme Robotics", "jane@acme.com")
	complete.CompanySize = "50-500"

	oversized := NewLead("Globex", "hank@globex.com")
	oversized.CompanySize = "galactic"

	broken := NewLead("Initech", "")

	duplicate := NewLead("Acme West", "jane@acme.com")

	report := RunValidationSuite([]*Lead{complete, oversized, broken, duplicate})

	if report.Valid {
		t.Error("report should be invalid with critical issues and duplicates present")
	}
	if report.Stats.TotalLeads != 4 || report.Stats.ValidLeads != 3 {
		t.Errorf("unexpected lead counts: %+v", report.Stats)
	}
	if report.Stats.CriticalIssues != 1 || report.Stats.Warnings != 1 || report.Stats.Duplicates != 1 {
		t.Errorf("unexpected issue counts: %+v", report.Stats)
	}
	if report.QualityScore != 74.5 {
		t.Errorf("quality score = %v, want 74.5", report.QualityScore)
	}

	want := "3/4 leads passed validation. Quality score: 74.5. Critical issues: 1, Warnings: 1, Duplicates: 1"
	if report.Summary != want {
		t.Errorf("summary = %q, want %q", report.Summary, want)
	}

	if len(report.Results) != 4 {
		t.Fatalf("expected 4 per-lead results, got %d", len(report.Results))
	}
	if !report.Results[0].Valid || report.Results[2].Valid {
		t.Error("per-lead validity misassigned")
	}
}

func TestRunValidationSuite_CleanData(t *testing.T) {
	leads := []*Lead{
		NewLead("Acme Robotics", "jane@acme.com"),
		NewLead("Globex", "hank@globex.com"),
	}

	report := RunValidationSuite(leads)

	if !report.Valid {
		t.Errorf("clean dataset should be valid, got %+v", report)
	}
	if report.QualityScore != 100 {
		t.Errorf("quality score = %v, want 100", report.QualityScore)
	}
}
