// Package run provides asynchronous campaign processing with budget control.
package run

import (
	"time"

	"github.com/teranos/cadence/agent"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/vanity-id"
)

// JobStatus represents the current state of a campaign run
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses a job can never leave
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Pause reasons recorded on jobs the worker pool suspends
const (
	PauseReasonBudgetExceeded = "budget_exceeded"
	PauseReasonRateLimit      = "rate_limit"
	PauseReasonUserRequested  = "user_requested"
)

// Progress tracks per-lead outcomes across a campaign run
type Progress struct {
	Total     int `json:"total"`               // Leads in the run
	Processed int `json:"processed"`           // Leads attempted (including failures)
	Qualified int `json:"qualified,omitempty"` // Leads the agent qualified
	Escalated int `json:"escalated,omitempty"` // Leads flagged for human review
	Failed    int `json:"failed,omitempty"`    // Leads that errored (missing, store failure)
}

// Percentage calculates progress as a percentage (0-100)
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// Job represents one asynchronous campaign run.
//
// A job carries the full lead ID list and a processed counter, so a
// paused, interrupted, or orphaned run resumes from where it stopped
// instead of re-qualifying leads it already handled.
type Job struct {
	ID           string     `json:"id"`
	CampaignID   string     `json:"campaign_id"`
	Variant      string     `json:"variant"`            // Prompt variant the run uses: A or B
	LeadIDs      []string   `json:"lead_ids,omitempty"` // Leads to process, in order
	Status       JobStatus  `json:"status"`
	Progress     Progress   `json:"progress"`
	CostEstimate float64    `json:"cost_estimate,omitempty"`
	CostActual   float64    `json:"cost_actual,omitempty"`
	PauseReason  string     `json:"pause_reason,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJob creates a queued campaign run over the given leads.
//
// The lead list is fixed at enqueue time so that pause/resume and orphan
// recovery replay exactly the same set. estimatedCost covers the whole
// run at the configured per-lead rate.
func NewJob(campaignID string, variant string, leadIDs []string, estimatedCost float64, actor string) (*Job, error) {
	if campaignID == "" {
		return nil, errors.New("campaignID cannot be empty")
	}
	if actor == "" {
		actor = "system"
	}

	// Format: JB + random(2) + handler(5) + random(2) + process(7) + random(2) + source(5) + random(4) + actor(3)
	jobID, err := id.GenerateJobASID("campaign.run", campaignID, actor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate job ASID")
	}

	now := time.Now().UTC()
	return &Job{
		ID:           jobID,
		CampaignID:   campaignID,
		Variant:      agent.NormalizeVariant(variant),
		LeadIDs:      leadIDs,
		Status:       JobStatusQueued,
		Progress:     Progress{Total: len(leadIDs)},
		CostEstimate: estimatedCost,
		CostActual:   0.0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Remaining returns the number of leads not yet attempted
func (j *Job) Remaining() int {
	remaining := j.Progress.Total - j.Progress.Processed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Pause marks the job as paused with a reason
func (j *Job) Pause(reason string) {
	j.Status = JobStatusPaused
	j.PauseReason = reason
	j.UpdatedAt = time.Now().UTC()
}

// Resume marks the job as queued so a worker picks it back up
func (j *Job) Resume() {
	j.Status = JobStatusQueued
	j.PauseReason = ""
	j.UpdatedAt = time.Now().UTC()
}

// Complete marks the job as completed
func (j *Job) Complete() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Cancel marks the job as cancelled with a reason
func (j *Job) Cancel(reason string) {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.Error = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// RecordOutcome counts one attempted lead and its qualification outcome
func (j *Job) RecordOutcome(qualified, escalated bool) {
	j.Progress.Processed++
	if qualified {
		j.Progress.Qualified++
	}
	if escalated {
		j.Progress.Escalated++
	}
	j.UpdatedAt = time.Now().UTC()
}

// RecordFailure counts one lead that could not be processed
func (j *Job) RecordFailure() {
	j.Progress.Processed++
	j.Progress.Failed++
	j.UpdatedAt = time.Now().UTC()
}

// RecordCost adds to the actual cost incurred
func (j *Job) RecordCost(cost float64) {
	j.CostActual += cost
	j.UpdatedAt = time.Now().UTC()
}
