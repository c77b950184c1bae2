package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/core"
)

// DefaultRetentionDays is the history horizon pruned after scheduled sweeps.
const DefaultRetentionDays = 30

// Schedule decides when the next sweep fires. Production uses DailyAt;
// tests inject immediate or never-firing schedules.
type Schedule interface {
	Next(now time.Time) time.Time
}

// DailySchedule fires once per day at a fixed local time.
type DailySchedule struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// DailyAt builds a schedule firing every day at hour:minute in loc
// (UTC when loc is nil).
func DailyAt(hour, minute int, loc *time.Location) DailySchedule {
	if loc == nil {
		loc = time.UTC
	}
	return DailySchedule{Hour: hour, Minute: minute, Loc: loc}
}

func (d DailySchedule) Next(now time.Time) time.Time {
	local := now.In(d.Loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler owns the recurring sweep trigger. Each instance carries its own
// timer state, so schedulers can be created, started and stopped
// independently.
type Scheduler struct {
	svc           *Service
	schedule      Schedule
	logger        *zap.Logger
	retentionDays int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewScheduler(svc *Service, schedule Schedule, retentionDays int, logger *zap.Logger) *Scheduler {
	if retentionDays < 1 {
		retentionDays = DefaultRetentionDays
	}
	return &Scheduler{
		svc:           svc,
		schedule:      schedule,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Start launches the trigger loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Debug("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started")
}

// Stop halts the trigger loop and waits for it to exit. Idempotent; a sweep
// already in flight finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Running reports whether the trigger loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		now := time.Now()
		next := s.schedule.Next(now)
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		s.logger.Info("next sweep scheduled",
			zap.Time("at", next),
			zap.Duration("in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// fire runs one scheduled sweep. Errors and panics are contained here so a
// bad firing never stops the loop or the host process.
func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked", zap.Any("panic", r))
		}
	}()

	if _, _, err := s.sweep(ctx); err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
	}
}

// RunNow performs the same sweep as a scheduled firing, outside the
// schedule. Used by the manual trigger endpoint.
func (s *Scheduler) RunNow(ctx context.Context) (summary *SweepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	sum, deleted, err := s.sweep(ctx)
	if err != nil {
		return nil, err
	}
	return &SweepResult{Summary: sum, LogsDeleted: deleted, Skipped: sum == nil}, nil
}

// SweepResult is the manual-trigger response. Skipped is set when the
// monitor is disabled in config.
type SweepResult struct {
	Summary     *core.SweepSummary `json:"summary"`
	LogsDeleted int64              `json:"logs_deleted"`
	Skipped     bool               `json:"skipped"`
}

// sweep reads the config gate, runs the batch sweep and prunes old history.
// A disabled monitor skips everything; that is not an error.
func (s *Scheduler) sweep(ctx context.Context) (*core.SweepSummary, int64, error) {
	cfg, err := s.svc.GetConfig(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read monitor config: %w", err)
	}
	if !cfg.Enabled {
		s.logger.Info("monitor disabled, skipping sweep")
		return nil, 0, nil
	}

	summary, err := s.svc.CheckAll(ctx, BatchOptions{
		BatchSize: DefaultBatchSize,
		Delay:     DefaultBatchDelay,
	})
	if err != nil {
		// Per-result persistence failures; the summary is still complete.
		s.logger.Warn("sweep completed with errors", zap.Error(err))
	}

	deleted, cleanupErr := s.svc.CleanupLogs(ctx, s.retentionDays)
	if cleanupErr != nil {
		s.logger.Error("retention cleanup failed", zap.Error(cleanupErr))
	}

	return summary, deleted, nil
}
