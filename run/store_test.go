package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cadence/errors"
	cadencetest "github.com/teranos/cadence/internal/testing"
)

// makeJob builds a queued job with a fixed creation time so ordering
// tests don't depend on wall-clock resolution
func makeJob(t *testing.T, campaignID string, leadIDs []string, createdAt time.Time) *Job {
	t.Helper()

	job, err := NewJob(campaignID, "A", leadIDs, float64(len(leadIDs))*0.002, "test")
	require.NoError(t, err)
	job.CreatedAt = createdAt
	job.UpdatedAt = createdAt
	return job
}

func TestStore_CreateAndGetJob(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := makeJob(t, "campaign-1", []string{"lead-1", "lead-2"}, created)
	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "campaign-1", got.CampaignID)
	assert.Equal(t, "A", got.Variant)
	assert.Equal(t, []string{"lead-1", "lead-2"}, got.LeadIDs)
	assert.Equal(t, JobStatusQueued, got.Status)
	assert.Equal(t, Progress{Total: 2}, got.Progress)
	assert.InDelta(t, 0.004, got.CostEstimate, 1e-9)
	assert.Empty(t, got.PauseReason)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
}

func TestStore_GetJob_NotFound(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.GetJob("no-such-job")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_CreateJob_EmptyLeadList(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	job := makeJob(t, "campaign-1", nil, time.Now().UTC())
	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LeadIDs)
	assert.Equal(t, 0, got.Progress.Total)
}

func TestStore_UpdateJob(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	job := makeJob(t, "campaign-1", []string{"lead-1", "lead-2"}, time.Now().UTC())
	require.NoError(t, store.CreateJob(job))

	job.Start()
	job.RecordOutcome(true, false)
	job.RecordCost(0.002)
	require.NoError(t, store.UpdateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, got.Status)
	assert.Equal(t, Progress{Total: 2, Processed: 1, Qualified: 1}, got.Progress)
	assert.InDelta(t, 0.002, got.CostActual, 1e-9)
	require.NotNil(t, got.StartedAt)

	job.Fail(errors.New("oracle unreachable"))
	require.NoError(t, store.UpdateJob(job))

	got, err = store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, "oracle unreachable", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_UpdateJob_NotFound(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	job := makeJob(t, "campaign-1", nil, time.Now().UTC())
	err := store.UpdateJob(job)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_UpdateProgress_PreservesStatus(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	job := makeJob(t, "campaign-1", []string{"lead-1", "lead-2", "lead-3"}, time.Now().UTC())
	require.NoError(t, store.CreateJob(job))
	job.Start()
	require.NoError(t, store.UpdateJob(job))

	// A pause lands through the API while the worker holds a stale copy
	paused, err := store.GetJob(job.ID)
	require.NoError(t, err)
	paused.Pause(PauseReasonUserRequested)
	require.NoError(t, store.UpdateJob(paused))

	// The worker's progress write must not resurrect the running status
	job.RecordOutcome(true, false)
	job.RecordCost(0.002)
	require.NoError(t, store.UpdateProgress(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPaused, got.Status)
	assert.Equal(t, PauseReasonUserRequested, got.PauseReason)
	assert.Equal(t, 1, got.Progress.Processed)
	assert.InDelta(t, 0.002, got.CostActual, 1e-9)
}

func TestStore_NextQueued_OldestFirst(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	second := makeJob(t, "campaign-2", nil, base.Add(time.Minute))
	first := makeJob(t, "campaign-1", nil, base)
	third := makeJob(t, "campaign-3", nil, base.Add(2*time.Minute))
	for _, job := range []*Job{second, first, third} {
		require.NoError(t, store.CreateJob(job))
	}

	got, err := store.NextQueued()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "oldest queued job should come first")
}

func TestStore_NextQueued_Empty(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	got, err := store.NextQueued()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_NextQueued_SkipsNonQueued(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	running := makeJob(t, "campaign-1", nil, time.Now().UTC())
	running.Start()
	require.NoError(t, store.CreateJob(running))

	paused := makeJob(t, "campaign-2", nil, time.Now().UTC())
	paused.Pause(PauseReasonBudgetExceeded)
	require.NoError(t, store.CreateJob(paused))

	got, err := store.NextQueued()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListJobs(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	queued := makeJob(t, "campaign-1", nil, base)
	completed := makeJob(t, "campaign-2", nil, base.Add(time.Minute))
	completed.Complete()
	newest := makeJob(t, "campaign-3", nil, base.Add(2*time.Minute))
	for _, job := range []*Job{queued, completed, newest} {
		require.NoError(t, store.CreateJob(job))
	}

	t.Run("all statuses, newest first", func(t *testing.T) {
		jobs, err := store.ListJobs(nil, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, newest.ID, jobs[0].ID)
		assert.Equal(t, queued.ID, jobs[2].ID)
	})

	t.Run("filter by status", func(t *testing.T) {
		status := JobStatusCompleted
		jobs, err := store.ListJobs(&status, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, completed.ID, jobs[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		jobs, err := store.ListJobs(nil, 2)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})
}

func TestStore_ListActiveJobs(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	queued := makeJob(t, "campaign-1", nil, time.Now().UTC())
	running := makeJob(t, "campaign-2", nil, time.Now().UTC())
	running.Start()
	paused := makeJob(t, "campaign-3", nil, time.Now().UTC())
	paused.Pause(PauseReasonRateLimit)
	done := makeJob(t, "campaign-4", nil, time.Now().UTC())
	done.Complete()
	for _, job := range []*Job{queued, running, paused, done} {
		require.NoError(t, store.CreateJob(job))
	}

	jobs, err := store.ListActiveJobs(10)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.False(t, job.Status.IsTerminal(), "active listing returned terminal job %s", job.ID)
	}
}

func TestStore_ListJobsByCampaign(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	old := makeJob(t, "campaign-1", nil, base)
	old.Complete()
	recent := makeJob(t, "campaign-1", nil, base.Add(time.Minute))
	other := makeJob(t, "campaign-2", nil, base)
	for _, job := range []*Job{old, recent, other} {
		require.NoError(t, store.CreateJob(job))
	}

	jobs, err := store.ListJobsByCampaign("campaign-1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, recent.ID, jobs[0].ID)
	assert.Equal(t, old.ID, jobs[1].ID)
}

func TestStore_FindActiveJobByCampaign(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	done := makeJob(t, "campaign-1", nil, time.Now().UTC())
	done.Complete()
	require.NoError(t, store.CreateJob(done))

	got, err := store.FindActiveJobByCampaign("campaign-1")
	require.NoError(t, err)
	assert.Nil(t, got, "completed runs should not block a new one")

	active := makeJob(t, "campaign-1", nil, time.Now().UTC())
	require.NoError(t, store.CreateJob(active))

	got, err = store.FindActiveJobByCampaign("campaign-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	got, err = store.FindActiveJobByCampaign("campaign-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListRunningJobs(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	older := makeJob(t, "campaign-1", nil, base)
	older.Start()
	newer := makeJob(t, "campaign-2", nil, base.Add(time.Minute))
	newer.Start()
	queued := makeJob(t, "campaign-3", nil, base)
	for _, job := range []*Job{newer, older, queued} {
		require.NoError(t, store.CreateJob(job))
	}

	jobs, err := store.ListRunningJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, older.ID, jobs[0].ID)
	assert.Equal(t, newer.ID, jobs[1].ID)
}

func TestStore_CountByStatus(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.CreateJob(makeJob(t, "campaign-q", nil, time.Now().UTC())))
	}
	done := makeJob(t, "campaign-d", nil, time.Now().UTC())
	done.Complete()
	require.NoError(t, store.CreateJob(done))

	counts, err := store.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[JobStatusQueued])
	assert.Equal(t, 1, counts[JobStatusCompleted])
	assert.Zero(t, counts[JobStatusRunning])
}

func TestStore_CleanupOldJobs(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	store := NewStore(db)

	stale := time.Now().UTC().Add(-48 * time.Hour)

	oldCompleted := makeJob(t, "campaign-1", nil, stale)
	oldCompleted.Complete()
	oldCompleted.UpdatedAt = stale
	require.NoError(t, store.CreateJob(oldCompleted))

	oldQueued := makeJob(t, "campaign-2", nil, stale)
	require.NoError(t, store.CreateJob(oldQueued))

	freshCompleted := makeJob(t, "campaign-3", nil, time.Now().UTC())
	freshCompleted.Complete()
	require.NoError(t, store.CreateJob(freshCompleted))

	removed, err := store.CleanupOldJobs(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetJob(oldCompleted.ID)
	assert.True(t, errors.IsNotFoundError(err), "old terminal job should be gone")

	_, err = store.GetJob(oldQueued.ID)
	assert.NoError(t, err, "active jobs survive cleanup regardless of age")

	_, err = store.GetJob(freshCompleted.ID)
	assert.NoError(t, err, "recent terminal jobs survive cleanup")
}
