package run

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cadence/errors"
)

func TestNewJob(t *testing.T) {
	leadIDs := []string{"lead-1", "lead-2", "lead-3"}

	job, err := NewJob("campaign-1", "B", leadIDs, 0.006, "alice")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(job.ID, "JB"), "job ID should carry the JB prefix, got %s", job.ID)
	assert.Equal(t, "campaign-1", job.CampaignID)
	assert.Equal(t, "B", job.Variant)
	assert.Equal(t, leadIDs, job.LeadIDs)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, Progress{Total: 3}, job.Progress)
	assert.Equal(t, 0.006, job.CostEstimate)
	assert.Zero(t, job.CostActual)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestNewJob_EmptyCampaignID(t *testing.T) {
	_, err := NewJob("", "A", []string{"lead-1"}, 0.002, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaignID cannot be empty")
}

func TestNewJob_NormalizesVariant(t *testing.T) {
	job, err := NewJob("campaign-1", "weird", nil, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "A", job.Variant)
	assert.Equal(t, 0, job.Progress.Total)
}

func TestNewJob_DistinctIDs(t *testing.T) {
	first, err := NewJob("campaign-1", "A", nil, 0, "alice")
	require.NoError(t, err)
	second, err := NewJob("campaign-1", "A", nil, 0, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range []string{"queued", "running", "paused", "completed", "failed", "cancelled"} {
		assert.True(t, IsValidStatus(status), "%s should be valid", status)
	}
	assert.False(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("QUEUED"))
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "%s should be terminal", status)
	}

	active := []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusPaused}
	for _, status := range active {
		assert.False(t, status.IsTerminal(), "%s should not be terminal", status)
	}
}

func TestProgress_Percentage(t *testing.T) {
	assert.Zero(t, Progress{}.Percentage())
	assert.Equal(t, 50.0, Progress{Total: 10, Processed: 5}.Percentage())
	assert.Equal(t, 100.0, Progress{Total: 4, Processed: 4}.Percentage())
}

func TestJob_Remaining(t *testing.T) {
	job := &Job{Progress: Progress{Total: 10, Processed: 3}}
	assert.Equal(t, 7, job.Remaining())

	// Never negative, even if counters drift
	job.Progress.Processed = 12
	assert.Equal(t, 0, job.Remaining())
}

func TestJob_Lifecycle(t *testing.T) {
	job, err := NewJob("campaign-1", "A", []string{"lead-1"}, 0.002, "alice")
	require.NoError(t, err)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.WithinDuration(t, time.Now().UTC(), *job.StartedAt, time.Second)

	job.Pause(PauseReasonBudgetExceeded)
	assert.Equal(t, JobStatusPaused, job.Status)
	assert.Equal(t, PauseReasonBudgetExceeded, job.PauseReason)

	// Resume re-queues rather than jumping straight to running, so a
	// worker picks the job up through the normal dequeue path
	job.Resume()
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Empty(t, job.PauseReason)

	job.Complete()
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_Fail(t *testing.T) {
	job, err := NewJob("campaign-1", "A", nil, 0, "")
	require.NoError(t, err)

	job.Fail(errors.New("oracle unreachable"))
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "oracle unreachable", job.Error)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_Cancel(t *testing.T) {
	job, err := NewJob("campaign-1", "A", nil, 0, "")
	require.NoError(t, err)

	job.Cancel("user requested")
	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.Equal(t, "user requested", job.Error)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_RecordOutcome(t *testing.T) {
	job := &Job{Progress: Progress{Total: 4}}

	job.RecordOutcome(true, false)
	job.RecordOutcome(true, true)
	job.RecordOutcome(false, true)
	job.RecordOutcome(false, false)

	assert.Equal(t, Progress{Total: 4, Processed: 4, Qualified: 2, Escalated: 2}, job.Progress)
}

func TestJob_RecordFailure(t *testing.T) {
	job := &Job{Progress: Progress{Total: 2}}

	job.RecordFailure()

	assert.Equal(t, 1, job.Progress.Processed)
	assert.Equal(t, 1, job.Progress.Failed)
	assert.Equal(t, 1, job.Remaining())
}

func TestJob_RecordCost(t *testing.T) {
	job := &Job{}

	job.RecordCost(0.002)
	job.RecordCost(0.002)

	assert.InDelta(t, 0.004, job.CostActual, 1e-9)
}
