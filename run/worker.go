package run

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cadence/agent"
	"github.com/teranos/cadence/errors"
	"github.com/teranos/cadence/run/budget"
	"github.com/teranos/cadence/sales"
)

const (
	// MaxOrphanedJobsToRecover limits how many orphaned jobs we'll attempt
	// to recover on startup to prevent overwhelming the system after a crash
	MaxOrphanedJobsToRecover = 1000

	// stopTimeout bounds how long Stop waits for workers to reach a lead
	// boundary before returning
	stopTimeout = 30 * time.Second
)

// BudgetTracker interface defines budget tracking operations
type BudgetTracker interface {
	CheckBudget(estimatedCost float64) error
	GetStatus() (*budget.Status, error)
}

// RateLimiter interface defines rate limiting operations
type RateLimiter interface {
	Allow() error
	Stats() (callsInWindow int, callsRemaining int)
}

// WorkerPool manages a pool of workers that process campaign runs
type WorkerPool struct {
	queue         *Queue
	leads         *sales.LeadStore
	interactions  *sales.InteractionStore
	sdr           *agent.Agent
	budgetTracker BudgetTracker // Budget tracking (optional - can be nil for tests)
	rateLimiter   RateLimiter   // Rate limiting (optional - can be nil for tests)
	poolConfig    WorkerPoolConfig
	workers       int
	parentCtx     context.Context // Parent context from which worker context is derived
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	jobsProcessed int       // Runs picked up since Start
	activeWorkers int       // Workers currently executing a run
	startTime     time.Time // When the pool started
	logger        *zap.SugaredLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers        int           `json:"workers"`           // Number of concurrent workers
	PollInterval   time.Duration `json:"poll_interval"`     // How often to check for new runs
	PauseOnBudget  bool          `json:"pause_on_budget"`   // Pause runs when budget exceeded (vs fail)
	CostPerLeadUSD float64       `json:"cost_per_lead_usd"` // Fallback per-lead estimate when a job carries none
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:        2,
		PollInterval:   time.Second,
		PauseOnBudget:  true,
		CostPerLeadUSD: 0.002,
	}
}

// NewWorkerPool creates a worker pool without budget or rate gates.
// Use NewWorkerPoolWithGates to enforce spend and pacing limits.
func NewWorkerPool(db *sql.DB, sdr *agent.Agent, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	return NewWorkerPoolWithGates(context.Background(), db, sdr, poolCfg, logger, nil, nil)
}

// NewWorkerPoolWithGates creates a worker pool with budget and rate gates.
// The pool derives its own context from ctx: cancelling ctx stops the
// workers, and Stop cancels only the pool's child context so the parent
// survives a restart. budgetTracker and rateLimiter can be nil.
func NewWorkerPoolWithGates(ctx context.Context, db *sql.DB, sdr *agent.Agent, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger, budgetTracker BudgetTracker, rateLimiter RateLimiter) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		queue:         NewQueue(db),
		leads:         sales.NewLeadStore(db),
		interactions:  sales.NewInteractionStore(db),
		sdr:           sdr,
		budgetTracker: budgetTracker,
		rateLimiter:   rateLimiter,
		poolConfig:    poolCfg,
		workers:       poolCfg.Workers,
		parentCtx:     ctx,
		ctx:           workerCtx,
		cancel:        cancel,
		logger:        logger.Named("run"),
	}
}

// Start begins processing runs with the worker pool. Orphaned runs from a
// previous process are re-queued first; their checkpoints mean they resume
// from the last processed lead rather than starting over.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()

	// Check if context was cancelled (after Stop()) - if so, create new one.
	// This must happen BEFORE spawning workers to avoid races.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Debugw("Recreated worker context after previous shutdown")
	default:
	}

	wp.startTime = time.Now()
	wp.jobsProcessed = 0
	wp.mu.Unlock()

	if err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned runs", "error", err)
		// Continue starting workers even if recovery fails
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.workers)
	}

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// recoverOrphanedJobs re-queues runs left in "running" state by a dead
// process (crash, kill -9, power loss)
func (wp *WorkerPool) recoverOrphanedJobs() error {
	orphaned, err := wp.queue.store.ListRunningJobs(MaxOrphanedJobsToRecover)
	if err != nil {
		return errors.Wrap(err, "failed to list running jobs")
	}

	if len(orphaned) == 0 {
		return nil
	}

	wp.logger.Infow("Recovering runs orphaned by previous shutdown", "count", len(orphaned))

	for _, job := range orphaned {
		job.Status = JobStatusQueued
		job.Error = "" // Clear any stale error message

		if err := wp.queue.UpdateJob(job); err != nil {
			wp.logger.Warnw("Failed to recover orphaned run", "job_id", job.ID, "error", err)
			continue
		}

		wp.logger.Infow("Recovered orphaned run",
			"job_id", job.ID,
			"campaign_id", job.CampaignID,
			"processed", job.Progress.Processed,
			"total", job.Progress.Total)
	}

	return nil
}

// Stop gracefully stops the worker pool. Workers stop at their next lead
// boundary; interrupted runs re-queue with their checkpoint intact.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped, all workers exited cleanly")
	case <-time.After(stopTimeout):
		wp.logger.Warnw("Worker pool stop timed out, workers may still be checkpointing", "timeout", stopTimeout)
		// Workers keep checkpointing in the background; return so shutdown
		// is not blocked indefinitely
	}
}

// worker polls the queue for runs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	interval := wp.poolConfig.PollInterval
	if interval <= 0 {
		interval = DefaultWorkerPoolConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Shutting down - exit without logging
					return
				default:
				}
				if errors.Is(err, sql.ErrConnDone) {
					// Database closed during shutdown - exit silently
					return
				}

				errorCount++
				wp.logger.Errorw("Worker error processing run",
					"worker_id", id,
					"error", err,
					"consecutive_errors", errorCount)

				// Back off after repeated failures so a broken database or
				// store does not get hammered every tick
				if errorCount >= maxConsecutiveErrors {
					wp.logger.Warnw("Worker backing off after consecutive errors",
						"worker_id", id,
						"backoff", backoffDuration,
						"consecutive_errors", errorCount)
					time.Sleep(backoffDuration)
					backoffDuration = min(backoffDuration*2, maxBackoff)
				}
			} else {
				if errorCount > 0 {
					wp.logger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob dequeues one run and drives it to a terminal state, a
// pause, or a shutdown checkpoint
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil // Graceful shutdown - don't pick up new runs
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}

	if job == nil {
		// No runs available
		return nil
	}

	// Rate limit before budget: pacing prevents API violations, budget
	// prevents cost overruns
	if paused, err := wp.checkRateLimit(job); paused || err != nil {
		if err != nil {
			return errors.Wrapf(err, "rate limit check failed for job %s", job.ID)
		}
		return nil // Run paused, no error
	}

	if paused, err := wp.checkBudget(job); paused || err != nil {
		if err != nil {
			return errors.Wrapf(err, "budget check failed for job %s", job.ID)
		}
		return nil // Run paused, no error
	}

	wp.mu.Lock()
	wp.jobsProcessed++
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	wp.logger.Infow("Starting campaign run",
		"job_id", job.ID,
		"campaign_id", job.CampaignID,
		"variant", job.Variant,
		"leads", job.Progress.Total,
		"resume_from", job.Progress.Processed)

	finished, err := wp.executeJob(wp.ctx, job)
	if err != nil {
		select {
		case <-wp.ctx.Done():
			// Shutdown during execution - re-queue with checkpoint intact
			wp.logger.Infow("Run interrupted by shutdown, re-queuing with checkpoint",
				"job_id", job.ID,
				"processed", job.Progress.Processed)
			job.Status = JobStatusQueued
			if updateErr := wp.queue.UpdateJob(job); updateErr != nil {
				wp.logger.Errorw("Failed to re-queue interrupted run", "job_id", job.ID, "error", updateErr)
			}
			return nil
		default:
			return wp.queue.FailJob(job.ID, err)
		}
	}

	if !finished {
		// Paused or cancelled mid-run; the job record already reflects it
		return nil
	}

	wp.logger.Infow("Campaign run complete",
		"job_id", job.ID,
		"campaign_id", job.CampaignID,
		"processed", job.Progress.Processed,
		"qualified", job.Progress.Qualified,
		"escalated", job.Progress.Escalated,
		"failed", job.Progress.Failed,
		"cost", job.CostActual)

	return wp.queue.CompleteJob(job.ID)
}

// executeJob processes the run's leads from its checkpoint. Returns true
// when every lead was attempted; false when the run stopped early because
// it was paused or cancelled.
func (wp *WorkerPool) executeJob(ctx context.Context, job *Job) (bool, error) {
	for idx := job.Progress.Processed; idx < len(job.LeadIDs); idx++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		// A pause or cancel through the API lands in the store; honor it
		// at the lead boundary
		current, err := wp.queue.GetJob(job.ID)
		if err != nil {
			return false, errors.Wrap(err, "failed to refresh job status")
		}
		if current.Status != JobStatusRunning {
			wp.logger.Infow("Run stopped externally",
				"job_id", job.ID,
				"status", current.Status,
				"processed", job.Progress.Processed)
			return false, nil
		}

		// Budget gate before each oracle-backed lead
		if wp.budgetTracker != nil {
			perLead := wp.perLeadCost(job)
			if budgetErr := wp.budgetTracker.CheckBudget(perLead); budgetErr != nil {
				wp.logBudgetStop(job, perLead)
				if wp.poolConfig.PauseOnBudget {
					if pauseErr := wp.queue.PauseJob(job.ID, PauseReasonBudgetExceeded); pauseErr != nil {
						return false, errors.Wrapf(pauseErr, "failed to pause job %s", job.ID)
					}
					return false, nil
				}
				return false, budgetErr
			}
		}

		wp.processLead(ctx, job, job.LeadIDs[idx])

		if err := wp.queue.UpdateProgress(job); err != nil {
			return false, errors.Wrap(err, "failed to persist run progress")
		}
	}

	return true, nil
}

// processLead runs one lead through qualification and, for qualified
// non-escalated leads, email generation. Store failures count against the
// run but never abort it.
func (wp *WorkerPool) processLead(ctx context.Context, job *Job, leadID string) {
	lead, err := wp.leads.Get(leadID)
	if err != nil {
		wp.logger.Warnw("Lead unavailable for run", "job_id", job.ID, "lead_id", leadID, "error", err)
		job.RecordFailure()
		return
	}

	result := wp.sdr.Qualify(ctx, lead, job.Variant)
	escalated := result.Escalated

	if err := wp.leads.UpdateQualification(lead.ID, result.Score, result.LeadStatus()); err != nil {
		wp.logger.Errorw("Failed to record qualification on lead",
			"job_id", job.ID, "lead_id", lead.ID, "error", err)
		job.RecordFailure()
		return
	}

	if err := wp.interactions.Create(result.Interaction(lead.ID, job.CampaignID)); err != nil {
		wp.logger.Errorw("Failed to record qualification interaction",
			"job_id", job.ID, "lead_id", lead.ID, "error", err)
	}

	job.RecordCost(wp.perLeadCost(job))

	// Email only for qualified, non-escalated leads. An email that fails
	// governance is still recorded, with escalation, for human review.
	if result.Qualified && !result.Escalated {
		emailResult := wp.sdr.GenerateEmail(ctx, lead, result.Score, job.Variant)
		escalated = escalated || emailResult.Escalated

		if err := wp.interactions.Create(emailResult.Interaction(lead.ID, job.CampaignID)); err != nil {
			wp.logger.Errorw("Failed to record email interaction",
				"job_id", job.ID, "lead_id", lead.ID, "error", err)
		}
	}

	job.RecordOutcome(result.Qualified, escalated)
}

// checkRateLimit verifies the rate limit and pauses the run if exceeded.
// Returns true if the run was paused (caller should return), false to continue.
func (wp *WorkerPool) checkRateLimit(job *Job) (paused bool, err error) {
	// If no rate limiter configured, skip rate limiting (tests, simple setups)
	if wp.rateLimiter == nil {
		return false, nil
	}

	if err := wp.rateLimiter.Allow(); err != nil {
		if pauseErr := wp.queue.PauseJob(job.ID, PauseReasonRateLimit); pauseErr != nil {
			return false, errors.Wrapf(pauseErr, "failed to pause job %s", job.ID)
		}
		callsInWindow, callsRemaining := wp.rateLimiter.Stats()
		wp.logger.Infow("Rate limit reached, run paused",
			"job_id", job.ID,
			"calls_in_window", callsInWindow,
			"calls_remaining", callsRemaining,
			"reason", PauseReasonRateLimit)
		return true, nil
	}

	return false, nil
}

// checkBudget verifies budget headroom for the run's remaining leads and
// pauses or fails it when exceeded. Returns true if the run was paused or
// failed (caller should return), false to continue.
func (wp *WorkerPool) checkBudget(job *Job) (paused bool, err error) {
	// If no budget tracker configured, skip budget checks (tests, simple setups)
	if wp.budgetTracker == nil {
		return false, nil
	}

	estimatedCost := wp.perLeadCost(job) * float64(job.Remaining())
	if err := wp.budgetTracker.CheckBudget(estimatedCost); err != nil {
		wp.logBudgetStop(job, estimatedCost)

		if wp.poolConfig.PauseOnBudget {
			if pauseErr := wp.queue.PauseJob(job.ID, PauseReasonBudgetExceeded); pauseErr != nil {
				return false, errors.Wrapf(pauseErr, "failed to pause job %s", job.ID)
			}
			return true, nil
		}
		return true, wp.queue.FailJob(job.ID, err)
	}

	return false, nil
}

// perLeadCost derives the per-lead estimate from the job, falling back to
// the configured rate
func (wp *WorkerPool) perLeadCost(job *Job) float64 {
	if job.Progress.Total > 0 && job.CostEstimate > 0 {
		return job.CostEstimate / float64(job.Progress.Total)
	}
	return wp.poolConfig.CostPerLeadUSD
}

func (wp *WorkerPool) logBudgetStop(job *Job, estimatedCost float64) {
	status, err := wp.budgetTracker.GetStatus()
	if err != nil {
		wp.logger.Warnw("Budget exceeded for run", "job_id", job.ID, "estimated_cost", estimatedCost)
		return
	}

	wp.logger.Infow("Budget exceeded, run stopped",
		"job_id", job.ID,
		"estimated_cost", estimatedCost,
		"daily_spend", status.DailySpend,
		"daily_remaining", status.DailyRemaining,
		"monthly_spend", status.MonthlySpend,
		"monthly_remaining", status.MonthlyRemaining,
		"reason", PauseReasonBudgetExceeded)
}

// GetQueue returns the job queue (useful for enqueuing runs)
func (wp *WorkerPool) GetQueue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}
