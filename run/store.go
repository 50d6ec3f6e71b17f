package run

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/cadence/errors"
)

// Store handles persistence of campaign run jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new run job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobSelectColumns = `id, campaign_id, variant, status, lead_ids, pause_reason,
	progress_total, progress_processed, progress_qualified, progress_escalated, progress_failed,
	cost_estimate, cost_actual, error, created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO run_jobs (
			id, campaign_id, variant, status, lead_ids, pause_reason,
			progress_total, progress_processed, progress_qualified, progress_escalated, progress_failed,
			cost_estimate, cost_actual, error,
			created_at, updated_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	leadIDs, err := marshalLeadIDs(job.LeadIDs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(query,
		job.ID,
		job.CampaignID,
		job.Variant,
		job.Status,
		leadIDs,
		nullString(job.PauseReason),
		job.Progress.Total,
		job.Progress.Processed,
		job.Progress.Qualified,
		job.Progress.Escalated,
		job.Progress.Failed,
		job.CostEstimate,
		job.CostActual,
		nullString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
	)

	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	return job, nil
}

// UpdateJob persists the job's mutable fields
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE run_jobs SET
			status = ?, lead_ids = ?, pause_reason = ?,
			progress_total = ?, progress_processed = ?, progress_qualified = ?,
			progress_escalated = ?, progress_failed = ?,
			cost_estimate = ?, cost_actual = ?, error = ?,
			updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`

	leadIDs, err := marshalLeadIDs(job.LeadIDs)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(query,
		job.Status,
		leadIDs,
		nullString(job.PauseReason),
		job.Progress.Total,
		job.Progress.Processed,
		job.Progress.Qualified,
		job.Progress.Escalated,
		job.Progress.Failed,
		job.CostEstimate,
		job.CostActual,
		nullString(job.Error),
		job.UpdatedAt,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.ID,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	return requireRowAffected(result, "job", job.ID)
}

// UpdateProgress persists progress counters and accrued cost without
// touching the status column. The worker writes progress at every lead
// boundary; a pause or cancel landing between boundaries must survive.
func (s *Store) UpdateProgress(job *Job) error {
	query := `
		UPDATE run_jobs SET
			progress_total = ?, progress_processed = ?, progress_qualified = ?,
			progress_escalated = ?, progress_failed = ?,
			cost_actual = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		job.Progress.Total,
		job.Progress.Processed,
		job.Progress.Qualified,
		job.Progress.Escalated,
		job.Progress.Failed,
		job.CostActual,
		job.UpdatedAt,
		job.ID,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update job progress")
	}

	return requireRowAffected(result, "job", job.ID)
}

// NextQueued returns the oldest queued job, or nil when the queue is empty.
// Oldest-first keeps runs fair: a large campaign cannot starve one enqueued
// before it.
func (s *Store) NextQueued() (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1`

	job, err := scanJob(s.db.QueryRow(query, JobStatusQueued))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next queued job")
	}

	return job, nil
}

// ListJobs returns jobs filtered by status, newest first. A nil status
// returns jobs in every state.
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error

	if status != nil {
		query := `SELECT ` + jobSelectColumns + ` FROM run_jobs WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		rows, err = s.db.Query(query, *status, limit)
	} else {
		query := `SELECT ` + jobSelectColumns + ` FROM run_jobs ORDER BY created_at DESC LIMIT ?`
		rows, err = s.db.Query(query, limit)
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// ListActiveJobs returns queued, running, and paused jobs, newest first
func (s *Store) ListActiveJobs(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs
		WHERE status IN (?, ?, ?) ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, JobStatusQueued, JobStatusRunning, JobStatusPaused, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "active jobs")
}

// ListJobsByCampaign returns a campaign's runs, newest first
func (s *Store) ListJobsByCampaign(campaignID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs WHERE campaign_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, campaignID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs for campaign")
	}
	defer rows.Close()

	return scanJobs(rows, "campaign jobs")
}

// FindActiveJobByCampaign returns a campaign's queued, running, or paused
// run if one exists, nil otherwise. Used to keep a campaign from running
// against itself.
func (s *Store) FindActiveJobByCampaign(campaignID string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs
		WHERE campaign_id = ? AND status IN (?, ?, ?)
		ORDER BY created_at DESC LIMIT 1`

	job, err := scanJob(s.db.QueryRow(query, campaignID, JobStatusQueued, JobStatusRunning, JobStatusPaused))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active job for campaign")
	}

	return job, nil
}

// ListRunningJobs returns running jobs, oldest first. Used for orphan
// recovery at startup.
func (s *Store) ListRunningJobs(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + jobSelectColumns + ` FROM run_jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?`

	rows, err := s.db.Query(query, JobStatusRunning, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list running jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "running jobs")
}

// CountByStatus returns the number of jobs in each status
func (s *Store) CountByStatus() (map[JobStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM run_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs by status")
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job counts")
	}

	return counts, nil
}

// CleanupOldJobs deletes terminal jobs whose last update is older than the
// retention window. Returns the number of jobs removed.
func (s *Store) CleanupOldJobs(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	result, err := s.db.Exec(
		`DELETE FROM run_jobs WHERE status IN (?, ?, ?) AND updated_at < ?`,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled, cutoff,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get cleanup row count")
	}

	return removed, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var leadIDs, pauseReason, jobError sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.CampaignID,
		&job.Variant,
		&job.Status,
		&leadIDs,
		&pauseReason,
		&job.Progress.Total,
		&job.Progress.Processed,
		&job.Progress.Qualified,
		&job.Progress.Escalated,
		&job.Progress.Failed,
		&job.CostEstimate,
		&job.CostActual,
		&jobError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if leadIDs.Valid {
		ids, err := unmarshalLeadIDs(leadIDs.String)
		if err != nil {
			return nil, err
		}
		job.LeadIDs = ids
	}
	job.PauseReason = pauseReason.String
	job.Error = jobError.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return jobs, nil
}

func marshalLeadIDs(ids []string) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, errors.Wrap(err, "failed to marshal lead IDs")
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalLeadIDs(data string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal lead IDs")
	}
	return ids, nil
}

// nullString maps empty strings to NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRowAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("%s not found: %s", entity, id)
	}
	return nil
}
