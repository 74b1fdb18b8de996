// Package scheduler runs the periodic backend liveness probe.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron-based interval jobs.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New creates a scheduler.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Schedule sets up a job to run at the given interval, replacing any
// previously scheduled job.
func (s *Scheduler) Schedule(interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	spec := fmt.Sprintf("@every %s", interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing job if any
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = entryID

	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}
