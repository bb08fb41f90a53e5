// Package scheduler provides cron-based digest delivery.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tripradar/backend/internal/model"
)

// DigestRunner flushes every pending digest queue for one frequency.
type DigestRunner interface {
	ProcessAllQueued(ctx context.Context, freq model.NotificationFrequency) (int, error)
}

// Config holds the scheduler configuration
type Config struct {
	// DailySchedule is a cron expression for the daily digest flush
	DailySchedule string
	// WeeklySchedule is a cron expression for the weekly digest flush
	WeeklySchedule string
	// Timeout is the maximum duration for one flush cycle
	Timeout time.Duration
	// Enabled determines if the scheduler should run
	Enabled bool
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		DailySchedule:  "0 9 * * *", // Every day at 09:00
		WeeklySchedule: "0 9 * * 1", // Every Monday at 09:00
		Timeout:        2 * time.Minute,
		Enabled:        true,
	}
}

// Scheduler manages scheduled digest flush jobs
type Scheduler struct {
	cron    *cron.Cron
	digests DigestRunner
	config  Config
	logger  *slog.Logger
	dailyID cron.EntryID
	weekID  cron.EntryID
}

// New creates a new Scheduler instance
func New(cfg Config, digests DigestRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		digests: digests,
		config:  cfg,
		logger:  logger,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled, skipping start")
		return nil
	}

	// Convert standard cron (5 fields) to cron with seconds (6 fields)
	// Add "0" at the beginning for seconds
	dailyID, err := s.cron.AddFunc("0 "+s.config.DailySchedule, func() {
		s.runFlushJob(model.FrequencyDaily)
	})
	if err != nil {
		return err
	}
	weekID, err := s.cron.AddFunc("0 "+s.config.WeeklySchedule, func() {
		s.runFlushJob(model.FrequencyWeekly)
	})
	if err != nil {
		return err
	}

	s.dailyID = dailyID
	s.weekID = weekID
	s.cron.Start()

	s.logger.Info("Scheduler started",
		slog.String("daily_schedule", s.config.DailySchedule),
		slog.String("weekly_schedule", s.config.WeeklySchedule),
		slog.Duration("timeout", s.config.Timeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler...")
	return s.cron.Stop()
}

// RunNow triggers an immediate flush for one frequency (useful for manual triggers)
func (s *Scheduler) RunNow(freq model.NotificationFrequency) {
	go s.runFlushJob(freq)
}

// runFlushJob executes one digest flush cycle
func (s *Scheduler) runFlushJob(freq model.NotificationFrequency) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	startTime := time.Now()
	s.logger.Info("Starting scheduled digest flush",
		slog.String("frequency", string(freq)),
		slog.Time("start_time", startTime),
	)

	count, err := s.digests.ProcessAllQueued(ctx, freq)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Digest flush failed",
			slog.String("frequency", string(freq)),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return
	}

	s.logger.Info("Digest flush completed successfully",
		slog.String("frequency", string(freq)),
		slog.Int("digests_delivered", count),
		slog.Duration("duration", duration),
	)
}

// GetNextRunTime returns the next scheduled daily flush time
func (s *Scheduler) GetNextRunTime() time.Time {
	if s.dailyID == 0 {
		return time.Time{}
	}
	entry := s.cron.Entry(s.dailyID)
	return entry.Next
}

// GetLastRunTime returns the last daily flush time
func (s *Scheduler) GetLastRunTime() time.Time {
	if s.dailyID == 0 {
		return time.Time{}
	}
	entry := s.cron.Entry(s.dailyID)
	return entry.Prev
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
