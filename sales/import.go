package sales

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/internal/httpclient"
)

// Importer loads leads from CSV files or URLs into the lead store
type Importer struct {
	store  *LeadStore
	logger *zap.SugaredLogger

	// BatchSize controls how many leads go into one insert transaction
	BatchSize int
	// SkipInvalid skips rows that fail validation instead of aborting
	SkipInvalid bool
	// Client fetches remote CSVs; defaults to an SSRF-protected client
	Client *httpclient.SaferClient
}

// NewImporter creates an importer with production defaults
func NewImporter(store *LeadStore, logger *zap.SugaredLogger) *Importer {
	return &Importer{
		store:       store,
		logger:      logger,
		BatchSize:   100,
		SkipInvalid: true,
		Client:      httpclient.NewSaferClient(30 * time.Second),
	}
}

// RowError records why a CSV row was rejected
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarizes an import run
type ImportReport struct {
	Imported     int        `json:"imported"`
	Skipped      int        `json:"skipped"`
	Errors       []RowError `json:"errors,omitempty"`
	QualityScore float64    `json:"quality_score"`
}

// csv columns recognized by the importer
var importColumns = map[string]bool{
	"company_name":  true,
	"industry":      true,
	"company_size":  true,
	"contact_name":  true,
	"contact_email": true,
	"source":        true,
}

// ImportCSV reads leads from CSV data. The first row must be a header
// naming at least company_name and contact_email; unrecognized columns are
// ignored. Row numbers in errors count from 2, matching spreadsheet views.
func (imp *Importer) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}

	columns := make(map[string]int)
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "﻿")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if importColumns[name] {
			columns[name] = i
		}
	}
	if _, ok := columns["company_name"]; !ok {
		return nil, errors.NewInvalidRequestError("CSV missing required column: company_name")
	}
	if _, ok := columns["contact_email"]; !ok {
		return nil, errors.NewInvalidRequestError("CSV missing required column: contact_email")
	}

	report := &ImportReport{}
	var batch []*Lead
	var validations []LeadValidation

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "import cancelled")
		}
		if err := imp.store.CreateBatch(batch); err != nil {
			return errors.Wrap(err, "failed to insert lead batch")
		}
		report.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	batchSize := imp.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	// Header is row 1; data rows count from 2
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, errors.Wrapf(err, "failed to parse CSV row %d", rowNum)
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		lead := NewLead(field("company_name"), field("contact_email"))
		lead.Industry = field("industry")
		lead.CompanySize = field("company_size")
		lead.ContactName = field("contact_name")
		lead.Source = field("source")
		if lead.Source == "" {
			lead.Source = "csv_import"
		}

		validation := ValidateLead(lead)
		validations = append(validations, validation)

		if !validation.Valid {
			message := describeIssues(validation.Issues)
			if !imp.SkipInvalid {
				return report, errors.NewInvalidRequestError("Row %d: %s", rowNum, message)
			}
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: rowNum, Message: message})
			continue
		}

		batch = append(batch, lead)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	report.QualityScore = QualityScore(validations)

	if imp.logger != nil {
		imp.logger.Infow("CSV import complete",
			"imported", report.Imported,
			"skipped", report.Skipped,
			"quality_score", report.QualityScore,
		)
	}

	return report, nil
}

// ImportFile imports leads from a CSV file on disk
func (imp *Importer) ImportFile(ctx context.Context, path string) (*ImportReport, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return nil, errors.NewInvalidRequestError("file must be a CSV: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	return imp.ImportCSV(ctx, f)
}

// ImportURL fetches a CSV over HTTP(S) and imports it. The fetch goes
// through the SSRF-protected client.
func (imp *Importer) ImportURL(ctx context.Context, url string) (*ImportReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid import URL")
	}

	resp, err := imp.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	return imp.ImportCSV(ctx, resp.Body)
}

// describeIssues flattens validation issues into one row error message
func describeIssues(issues []ValidationIssue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Issue))
	}
	return strings.Join(parts, "; ")
}
