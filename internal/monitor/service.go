// Package monitor implements the website availability engine: probing,
// batched sweeps, status transitions, check history and retention.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/metrics"
	"github.com/uied-nav/sitemonitor/internal/store"
)

// ErrInvalidConfig is returned when a config update fails validation.
var ErrInvalidConfig = errors.New("invalid monitor config")

// Service wires the checker, batch runner and repositories into the
// operations the controller layer and the scheduler consume.
type Service struct {
	websites store.WebsiteRepo
	config   store.ConfigRepo
	logs     store.LogRepo
	metrics  *metrics.Collector
	logger   *zap.Logger

	userAgent string
	batches   *BatchRunner

	// newProber is swapped by tests; production builds a Checker from the
	// per-sweep config timeout.
	newProber func(timeout time.Duration) Prober
}

type Options struct {
	UserAgent string
	// ProbeRPS caps the steady-state probe rate across a sweep. Zero
	// disables the limiter.
	ProbeRPS float64
}

func NewService(websites store.WebsiteRepo, config store.ConfigRepo, logs store.LogRepo, collector *metrics.Collector, logger *zap.Logger, opts Options) *Service {
	var limiter *rate.Limiter
	if opts.ProbeRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ProbeRPS), int(math.Ceil(opts.ProbeRPS)))
	}
	s := &Service{
		websites:  websites,
		config:    config,
		logs:      logs,
		metrics:   collector,
		logger:    logger,
		userAgent: opts.UserAgent,
		batches:   NewBatchRunner(logger, limiter),
	}
	s.newProber = func(timeout time.Duration) Prober {
		return NewChecker(timeout, s.userAgent)
	}
	return s
}

// GetConfig returns the monitor config, creating defaults on first read.
func (s *Service) GetConfig(ctx context.Context) (*core.MonitorConfig, error) {
	return s.config.Get(ctx)
}

// UpdateConfig validates and persists the monitor configuration.
func (s *Service) UpdateConfig(ctx context.Context, cfg core.MonitorConfig) (*core.MonitorConfig, error) {
	if cfg.CheckInterval < 1 {
		return nil, fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	if cfg.Timeout < 1 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("%w: max_retries must be at least 1", ErrInvalidConfig)
	}
	if err := s.config.Update(ctx, &cfg); err != nil {
		return nil, err
	}
	s.logger.Info("monitor config updated",
		zap.Int("check_interval", cfg.CheckInterval),
		zap.Int("timeout_ms", cfg.Timeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("enabled", cfg.Enabled),
	)
	return &cfg, nil
}

// CheckWebsite probes a single website immediately and commits the result.
func (s *Service) CheckWebsite(ctx context.Context, id uuid.UUID) (*core.Outcome, error) {
	w, err := s.websites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	prober := s.newProber(time.Duration(cfg.Timeout) * time.Millisecond)
	out := prober.Check(ctx, w)
	if err := s.apply(ctx, w, out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAll sweeps every registered website in batches and returns the
// summary. Persistence errors from individual results are joined into the
// returned error; the sweep itself always runs to completion.
func (s *Service) CheckAll(ctx context.Context, opts BatchOptions) (*core.SweepSummary, error) {
	websites, err := s.websites.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	prober := s.newProber(time.Duration(cfg.Timeout) * time.Millisecond)
	summary, runErr := s.batches.Run(ctx, websites, prober, s.apply, opts)

	s.metrics.RecordSweep(time.Since(start))
	s.refreshWebsiteGauges(ctx)

	s.logger.Info("sweep finished",
		zap.Int("total", summary.Total),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, runErr
}

// apply commits one probe outcome: exactly one check log row and one status
// overwrite. A log-append failure does not block the status write; both
// errors surface to the caller.
func (s *Service) apply(ctx context.Context, w *core.Website, out core.Outcome) error {
	logErr := s.logs.Append(ctx, &core.CheckLog{
		WebsiteID:      w.ID,
		Status:         out.Status,
		HTTPStatus:     out.HTTPStatus,
		ResponseTimeMs: out.ResponseTimeMs,
		ErrorMessage:   out.ErrorMessage,
		CheckedAt:      out.CheckedAt,
	})
	if logErr != nil {
		s.logger.Error("failed to append check log",
			zap.String("website_id", w.ID.String()),
			zap.Error(logErr),
		)
	}

	checkedAt := out.CheckedAt
	upd := core.StatusUpdate{LastCheckedAt: &checkedAt}
	if out.Status == core.CheckSuccess {
		upd.Status = core.StatusActive
		upd.FailedCount = 0
	} else {
		// Status flips on the first failed probe; MaxRetries does not gate
		// the transition (see DESIGN.md).
		upd.Status = core.StatusFailed
		upd.FailedCount = w.FailedCount + 1
		upd.StatusMessage = out.ErrorMessage
	}
	stateErr := s.websites.UpdateStatus(ctx, w.ID, upd)
	if stateErr != nil {
		s.logger.Error("failed to update website status",
			zap.String("website_id", w.ID.String()),
			zap.Error(stateErr),
		)
	}

	s.metrics.RecordCheck(out)
	return errors.Join(logErr, stateErr)
}

// ResetStatus returns a website to the unchecked state without probing it.
func (s *Service) ResetStatus(ctx context.Context, id uuid.UUID) error {
	if _, err := s.websites.GetByID(ctx, id); err != nil {
		return err
	}
	err := s.websites.UpdateStatus(ctx, id, core.StatusUpdate{
		Status:        core.StatusUnchecked,
		LastCheckedAt: nil,
		FailedCount:   0,
		StatusMessage: nil,
	})
	if err != nil {
		return err
	}
	s.logger.Info("website status reset", zap.String("website_id", id.String()))
	return nil
}

// Statistics aggregates current status counts and the most recent check time.
func (s *Service) Statistics(ctx context.Context) (*core.Statistics, error) {
	counts, err := s.websites.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	lastCheck, err := s.logs.LastCheckedAt(ctx)
	if err != nil {
		return nil, err
	}

	stats := &core.Statistics{
		Active:      counts[core.StatusActive],
		Failed:      counts[core.StatusFailed],
		Unchecked:   counts[core.StatusUnchecked],
		LastCheckAt: lastCheck,
	}
	stats.Total = stats.Active + stats.Failed + stats.Unchecked
	if stats.Total > 0 {
		stats.ActiveRate = math.Round(float64(stats.Active)/float64(stats.Total)*10000) / 100
	}
	return stats, nil
}

// FailedWebsites lists websites currently in the failed state, paged.
func (s *Service) FailedWebsites(ctx context.Context, page store.Page) ([]*core.Website, int, error) {
	return s.websites.ListByStatus(ctx, core.StatusFailed, page)
}

// WebsiteLogs lists a website's check history, newest first.
func (s *Service) WebsiteLogs(ctx context.Context, id uuid.UUID, page store.Page) ([]*core.CheckLog, int, error) {
	if _, err := s.websites.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.logs.ListByWebsite(ctx, id, page)
}

// CleanupLogs deletes check logs older than the given number of days and
// returns how many rows were removed.
func (s *Service) CleanupLogs(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("%w: retention days must be positive", ErrInvalidConfig)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordCleanup(deleted)
	s.logger.Info("check logs cleaned up",
		zap.Int("days", days),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *Service) refreshWebsiteGauges(ctx context.Context) {
	stats, err := s.Statistics(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh website gauges", zap.Error(err))
		return
	}
	s.metrics.SetWebsiteCounts(*stats)
}
