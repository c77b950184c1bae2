package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uied-nav/sitemonitor/internal/core"
)

const (
	// DefaultBatchSize bounds how many probes run concurrently so that a
	// full sweep does not open one connection per registered website at once.
	DefaultBatchSize = 10
	// DefaultBatchDelay is the pause between consecutive batches.
	DefaultBatchDelay = time.Second
)

// Prober is anything that can probe one website. Checker is the production
// implementation; tests substitute fakes.
type Prober interface {
	Check(ctx context.Context, w *core.Website) core.Outcome
}

// OutcomeSink receives each settled probe result together with the website's
// pre-probe state. Returned errors are collected, not fatal to the sweep.
type OutcomeSink func(ctx context.Context, w *core.Website, out core.Outcome) error

// BatchOptions tunes one sweep. A zero BatchSize falls back to
// DefaultBatchSize; Delay is taken literally, so callers that want the
// standard pacing pass DefaultBatchDelay.
type BatchOptions struct {
	BatchSize int
	Delay     time.Duration
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// BatchRunner partitions the website list into contiguous batches, probes
// each batch with full internal concurrency, and sleeps between batches.
type BatchRunner struct {
	logger  *zap.Logger
	limiter *rate.Limiter // optional egress smoothing, may be nil
}

func NewBatchRunner(logger *zap.Logger, limiter *rate.Limiter) *BatchRunner {
	return &BatchRunner{logger: logger, limiter: limiter}
}

// Run probes every website and returns one outcome per website in traversal
// order. A slow or failing probe never blocks or aborts its batch siblings
// beyond the batch-level wait. The returned error joins sink failures; the
// summary is complete either way.
func (b *BatchRunner) Run(ctx context.Context, websites []*core.Website, prober Prober, sink OutcomeSink, opts BatchOptions) (*core.SweepSummary, error) {
	opts = opts.withDefaults()

	summary := &core.SweepSummary{
		Total:   len(websites),
		Details: make([]core.Outcome, len(websites)),
	}
	sinkErrs := make([]error, len(websites))

	for start := 0; start < len(websites); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(websites) {
			end = len(websites)
		}
		batch := websites[start:end]

		b.logger.Debug("running batch",
			zap.Int("from", start),
			zap.Int("size", len(batch)),
		)

		var wg sync.WaitGroup
		for i, w := range batch {
			wg.Add(1)
			go func(idx int, site *core.Website) {
				defer wg.Done()
				// A panic probing one website must not take down its batch
				// siblings or the host process.
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("probe panicked",
							zap.String("url", site.URL),
							zap.Any("panic", r),
						)
						msg := fmt.Sprintf("probe panicked: %v", r)
						summary.Details[idx] = core.Outcome{
							WebsiteID:    site.ID,
							URL:          site.URL,
							Status:       core.CheckFailed,
							ErrorMessage: &msg,
							CheckedAt:    time.Now().UTC(),
						}
					}
				}()
				if b.limiter != nil {
					if err := b.limiter.Wait(ctx); err != nil {
						b.logger.Warn("probe limiter wait aborted", zap.Error(err))
					}
				}
				out := prober.Check(ctx, site)
				summary.Details[idx] = out
				if sink != nil {
					sinkErrs[idx] = sink(ctx, site, out)
				}
			}(start+i, w)
		}
		wg.Wait()

		for _, out := range summary.Details[start:end] {
			if out.Status == core.CheckSuccess {
				summary.Success++
			} else {
				summary.Failed++
			}
		}

		if end < len(websites) && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}

	return summary, joinErrs(sinkErrs)
}

func joinErrs(errs []error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return errors.Join(nonNil...)
}
