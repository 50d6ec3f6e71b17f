package server

import (
	"time"
)

// startBackgroundServices starts the hub loop and the broadcast goroutines
func (s *Server) startBackgroundServices() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	s.startJobUpdateBroadcaster()
	s.startStatusBroadcaster()
}

// startJobUpdateBroadcaster forwards every queue transition to connected
// clients. The queue notifies its subscribers on every enqueue, dequeue,
// progress write, pause, resume, cancel, completion, and failure, so the
// UI tracks runs without polling.
func (s *Server) startJobUpdateBroadcaster() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		updates := s.queue.Subscribe()
		defer s.queue.Unsubscribe(updates)

		for {
			select {
			case <-s.ctx.Done():
				return
			case job, ok := <-updates:
				if !ok {
					return
				}
				s.broadcastMessage(JobUpdateMessage{Type: "job_update", Job: job})
			}
		}
	}()
}

// startStatusBroadcaster pushes the worker/budget snapshot on a fixed
// interval, suppressing broadcasts when nothing changed
func (s *Server) startStatusBroadcaster() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.broadcastStatus(false)
			}
		}
	}()
}

// currentStatus samples queue depth and budget state. Returns nil when
// the queue is unreadable; a broken snapshot is worse than a missed one.
func (s *Server) currentStatus() *StatusMessage {
	queued, running, err := s.queue.GetJobCounts()
	if err != nil {
		s.logger.Warnw("Failed to get job counts for status", "error", err)
		return nil
	}

	msg := &StatusMessage{
		Type:        "status",
		Running:     s.poolRunning.Load(),
		Workers:     s.pool.Workers(),
		JobsQueued:  queued,
		JobsRunning: running,
		ServerState: stateString(s.getState()),
		Timestamp:   time.Now().UTC().Unix(),
	}

	if s.budget != nil {
		if status, err := s.budget.GetStatus(); err != nil {
			s.logger.Warnw("Failed to get budget status", "error", err)
		} else {
			msg.BudgetDaily = status.DailySpend
			msg.BudgetWeekly = status.WeeklySpend
			msg.BudgetMonthly = status.MonthlySpend
		}
		limits := s.budget.GetBudgetLimits()
		msg.BudgetDailyLimit = limits.DailyBudgetUSD
		msg.BudgetWeeklyLimit = limits.WeeklyBudgetUSD
		msg.BudgetMonthlyLimit = limits.MonthlyBudgetUSD
	}

	return msg
}

// broadcastStatus samples and broadcasts the status snapshot. Unless
// force is set, unchanged snapshots are suppressed so idle servers stay
// quiet on the wire.
func (s *Server) broadcastStatus(force bool) {
	msg := s.currentStatus()
	if msg == nil {
		return
	}

	snap := statusSnapshot{
		queued:       msg.JobsQueued,
		running:      msg.JobsRunning,
		dailySpend:   msg.BudgetDaily,
		weeklySpend:  msg.BudgetWeekly,
		monthlySpend: msg.BudgetMonthly,
		dailyLimit:   msg.BudgetDailyLimit,
		weeklyLimit:  msg.BudgetWeeklyLimit,
		monthlyLimit: msg.BudgetMonthlyLimit,
		poolRunning:  msg.Running,
	}

	s.mu.Lock()
	if !force && s.lastStatus != nil && *s.lastStatus == snap {
		s.mu.Unlock()
		return
	}
	s.lastStatus = &snap
	s.mu.Unlock()

	s.broadcastMessage(msg)
}
