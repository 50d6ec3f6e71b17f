package sales

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Issue severities
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Issue codes
const (
	IssueMissingRequiredField = "missing_required_field"
	IssueInvalidEmailFormat   = "invalid_email_format"
	IssueInvalidValue         = "invalid_value"
)

// ValidCompanySizes lists the accepted company size buckets
var ValidCompanySizes = []string{"1-50", "50-500", "500-2000", "2000+"}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationIssue describes a single problem found on a lead field
type ValidationIssue struct {
	Field    string `json:"field"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// LeadValidation is the outcome of validating one lead. A lead is valid
// when it has no critical issues; warnings do not invalidate it.
type LeadValidation struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

// DuplicateGroup records a repeated contact email and the indices involved
type DuplicateGroup struct {
	Email   string `json:"email"`
	Indices []int  `json:"indices"`
}

// ValidationStats aggregates counts across a validation run
type ValidationStats struct {
	TotalLeads     int `json:"total_leads"`
	ValidLeads     int `json:"valid_leads"`
	CriticalIssues int `json:"critical_issues"`
	Warnings       int `json:"warnings"`
	Duplicates     int `json:"duplicates"`
}

// ValidationReport is the full output of RunValidationSuite
type ValidationReport struct {
	Valid        bool             `json:"valid"`
	QualityScore float64          `json:"quality_score"`
	Results      []LeadValidation `json:"results"`
	Duplicates   []DuplicateGroup `json:"duplicates"`
	Summary      string           `json:"summary"`
	Stats        ValidationStats  `json:"stats"`
}

// ValidateEmail reports whether the address matches the accepted email shape
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateLead checks a single lead for missing required fields, malformed
// email, and out-of-range company size
func ValidateLead(lead *Lead) LeadValidation {
	var issues []ValidationIssue

	if lead.CompanyName == "" {
		issues = append(issues, ValidationIssue{
			Field:    "company_name",
			Issue:    IssueMissingRequiredField,
			Severity: SeverityCritical,
		})
	}

	if lead.ContactEmail == "" {
		issues = append(issues, ValidationIssue{
			Field:    "contact_email",
			Issue:    IssueMissingRequiredField,
			Severity: SeverityCritical,
		})
	} else if !ValidateEmail(lead.ContactEmail) {
		issues = append(issues, ValidationIssue{
			Field:    "contact_email",
			Issue:    IssueInvalidEmailFormat,
			Severity: SeverityCritical,
		})
	}

	if lead.CompanySize != "" && !isValidCompanySize(lead.CompanySize) {
		issues = append(issues, ValidationIssue{
			Field:    "company_size",
			Issue:    IssueInvalidValue,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("Expected one of: %s", strings.Join(ValidCompanySizes, ", ")),
		})
	}

	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			valid = false
			break
		}
	}

	return LeadValidation{Valid: valid, Issues: issues}
}

func isValidCompanySize(size string) bool {
	for _, valid := range ValidCompanySizes {
		if size == valid {
			return true
		}
	}
	return false
}

// CheckDuplicates finds leads sharing a contact email (case-insensitive).
// Each repeat occurrence produces one group pairing the first index with
// the repeated one; leads without an email are ignored.
func CheckDuplicates(leads []*Lead) []DuplicateGroup {
	seen := make(map[string]int)
	var duplicates []DuplicateGroup

	for idx, lead := range leads {
		email := strings.ToLower(lead.ContactEmail)
		if email == "" {
			continue
		}
		if first, ok := seen[email]; ok {
			duplicates = append(duplicates, DuplicateGroup{
				Email:   email,
				Indices: []int{first, idx},
			})
		} else {
			seen[email] = idx
		}
	}

	return duplicates
}

// QualityScore computes a 0-100 data quality score: the share of valid
// leads, minus half a point per warning capped at a 20 point penalty.
// Rounded to two decimal places.
func QualityScore(results []LeadValidation) float64 {
	if len(results) == 0 {
		return 0
	}

	validCount := 0
	warningCount := 0
	for _, result := range results {
		if result.Valid {
			validCount++
		}
		for _, issue := range result.Issues {
			if issue.Severity == SeverityWarning {
				warningCount++
			}
		}
	}

	score := float64(validCount) / float64(len(results)) * 100
	score -= math.Min(float64(warningCount)*0.5, 20)
	if score < 0 {
		score = 0
	}

	return math.Round(score*100) / 100
}

// RunValidationSuite validates every lead, detects duplicate emails, and
// rolls the findings up into a report. The report is valid only when no
// lead has a critical issue and no duplicates exist.
func RunValidationSuite(leads []*Lead) *ValidationReport {
	results := make([]LeadValidation, 0, len(leads))
	for _, lead := range leads {
		results = append(results, ValidateLead(lead))
	}

	duplicates := CheckDuplicates(leads)
	qualityScore := QualityScore(results)

	stats := ValidationStats{
		TotalLeads: len(leads),
		Duplicates: len(duplicates),
	}
	for _, result := range results {
		if result.Valid {
			stats.ValidLeads++
		}
		for _, issue := range result.Issues {
			switch issue.Severity {
			case SeverityCritical:
				stats.CriticalIssues++
			case SeverityWarning:
				stats.Warnings++
			}
		}
	}

	return &ValidationReport{
		Valid:        stats.CriticalIssues == 0 && stats.Duplicates == 0,
		QualityScore: qualityScore,
		Results:      results,
		Duplicates:   duplicates,
		Summary: fmt.Sprintf("%d/%d leads passed validation. Quality score: %v. Critical issues: %d, Warnings: %d, Duplicates: %d",
			stats.ValidLeads, stats.TotalLeads, qualityScore, stats.CriticalIssues, stats.Warnings, stats.Duplicates),
		Stats: stats,
	}
}
