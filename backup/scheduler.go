/*
scheduler.go - Periodic backups

PURPOSE:
  Runs Manager.Backup on a cron schedule so the state is copied off the
  machine without anyone thinking about it.

DESIGN:
  - robfig/cron drives the schedule ("@every 5m", "0 3 * * *", ...)
  - A tick that finds a backup already running is skipped
  - Failures are logged and reported by Manager.Status; they never stop
    the schedule

USAGE:
  sched, err := NewScheduler(manager, "@every 5m", logger)
  sched.Start()
  // ... later
  sched.Stop()
*/
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/logging"
)

// DefaultSchedule is the interval of automatic backups.
const DefaultSchedule = "@every 5m"

// ScheduleFromMinutes turns a backup interval in minutes into a schedule.
func ScheduleFromMinutes(minutes int) string {
	if minutes <= 0 {
		return DefaultSchedule
	}
	return fmt.Sprintf("@every %dm", minutes)
}

// Scheduler triggers backups on a cron schedule.
type Scheduler struct {
	manager *Manager
	spec    string
	cron    *cron.Cron
	entry   cron.EntryID
	log     *logging.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler validates the schedule and prepares the cron runner.
func NewScheduler(manager *Manager, spec string, log *logging.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	if log == nil {
		log = logging.Nop()
	}
	log = log.WithComponent(logging.ComponentSchedule)

	s := &Scheduler{manager: manager, spec: spec, log: log}
	cl := cronLogger{log}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id, err := s.cron.AddFunc(spec, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("schedule backup: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start begins the schedule. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info("backup schedule started", "schedule", s.spec)
}

// Stop halts the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("backup schedule stopped")
}

// RunNow performs one scheduled backup.
func (s *Scheduler) RunNow() {
	ctx := context.Background()
	if _, err := s.manager.Backup(ctx); err != nil {
		if errors.Is(err, generic.ErrBackupInProgress) {
			s.log.Debug("backup skipped, another one is running")
			return
		}
		s.log.Warn("scheduled backup failed", logging.FieldError, err)
	}
}

// NextRun returns when the next backup is due, zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Spec returns the schedule.
func (s *Scheduler) Spec() string { return s.spec }

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ log *logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append([]any{logging.FieldError, err}, keysAndValues...)...)
}
