package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/core"
)

// fakeProber classifies by a per-URL verdict map and records concurrency.
type fakeProber struct {
	mu          sync.Mutex
	calls       int32
	inFlight    int32
	maxInFlight int32
	failURLs    map[string]bool
	latency     time.Duration
}

func (f *fakeProber) Check(ctx context.Context, w *core.Website) core.Outcome {
	atomic.AddInt32(&f.calls, 1)
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if cur > f.maxInFlight {
		f.maxInFlight = cur
	}
	fail := f.failURLs[w.URL]
	f.mu.Unlock()

	if f.latency > 0 {
		time.Sleep(f.latency)
	}

	out := core.Outcome{
		WebsiteID: w.ID,
		URL:       w.URL,
		CheckedAt: time.Now().UTC(),
	}
	if fail {
		out.Status = core.CheckFailed
		out.ErrorMessage = strptr("HTTP 503")
		code := 503
		out.HTTPStatus = &code
	} else {
		out.Status = core.CheckSuccess
		code := 200
		out.HTTPStatus = &code
	}
	return out
}

func sites(n int) []*core.Website {
	out := make([]*core.Website, n)
	for i := range out {
		out[i] = testWebsite(fmt.Sprintf("http://site-%03d.example", i))
	}
	return out
}

func TestBatchRunner_ProbesEveryWebsiteOnce(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		prober := &fakeProber{}
		runner := NewBatchRunner(zap.NewNop(), nil)

		summary, err := runner.Run(context.Background(), sites(n), prober, nil,
			BatchOptions{BatchSize: 10})
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if got := int(atomic.LoadInt32(&prober.calls)); got != n {
			t.Errorf("n=%d: want %d probes, got %d", n, n, got)
		}
		if summary.Total != n || summary.Success+summary.Failed != n {
			t.Errorf("n=%d: inconsistent summary %+v", n, summary)
		}
		if len(summary.Details) != n {
			t.Errorf("n=%d: want %d details, got %d", n, n, len(summary.Details))
		}
	}
}

func TestBatchRunner_PreservesTraversalOrder(t *testing.T) {
	websites := sites(25)
	prober := &fakeProber{latency: time.Millisecond}
	runner := NewBatchRunner(zap.NewNop(), nil)

	summary, err := runner.Run(context.Background(), websites, prober, nil,
		BatchOptions{BatchSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, d := range summary.Details {
		if d.URL != websites[i].URL {
			t.Fatalf("detail %d out of order: want %s, got %s", i, websites[i].URL, d.URL)
		}
	}
}

func TestBatchRunner_ConcurrencyBoundedByBatchSize(t *testing.T) {
	prober := &fakeProber{latency: 20 * time.Millisecond}
	runner := NewBatchRunner(zap.NewNop(), nil)

	_, err := runner.Run(context.Background(), sites(30), prober, nil,
		BatchOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prober.maxInFlight > 10 {
		t.Fatalf("in-flight probes exceeded batch size: %d", prober.maxInFlight)
	}
	if prober.maxInFlight < 2 {
		t.Fatalf("probes within a batch should overlap, max in-flight was %d", prober.maxInFlight)
	}
}

func TestBatchRunner_DelayBetweenBatchesOnly(t *testing.T) {
	prober := &fakeProber{}
	runner := NewBatchRunner(zap.NewNop(), nil)

	// 25 websites in batches of 10 -> 3 batches, 2 inter-batch delays.
	start := time.Now()
	summary, err := runner.Run(context.Background(), sites(25), prober, nil,
		BatchOptions{BatchSize: 10, Delay: 100 * time.Millisecond})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 25 {
		t.Fatalf("want total 25, got %d", summary.Total)
	}
	if elapsed < 200*time.Millisecond {
		t.Fatalf("want at least 2 inter-batch delays (200ms), elapsed %s", elapsed)
	}
	// No delay after the final batch; generous ceiling for slow machines.
	if elapsed > 2*time.Second {
		t.Fatalf("sweep took too long: %s", elapsed)
	}
}

func TestBatchRunner_SingleBatchHasNoDelay(t *testing.T) {
	prober := &fakeProber{}
	runner := NewBatchRunner(zap.NewNop(), nil)

	start := time.Now()
	_, err := runner.Run(context.Background(), sites(5), prober, nil,
		BatchOptions{BatchSize: 10, Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("single batch should not sleep, took %s", elapsed)
	}
}

func TestBatchRunner_FailuresAreCounted(t *testing.T) {
	websites := sites(10)
	prober := &fakeProber{failURLs: map[string]bool{
		websites[2].URL: true,
		websites[7].URL: true,
	}}
	runner := NewBatchRunner(zap.NewNop(), nil)

	summary, err := runner.Run(context.Background(), websites, prober, nil,
		BatchOptions{BatchSize: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Success != 8 || summary.Failed != 2 {
		t.Fatalf("want 8/2, got %d/%d", summary.Success, summary.Failed)
	}
}

func TestBatchRunner_SinkErrorsAreJoinedNotFatal(t *testing.T) {
	websites := sites(6)
	prober := &fakeProber{}
	runner := NewBatchRunner(zap.NewNop(), nil)

	var sinkCalls int32
	sink := func(ctx context.Context, w *core.Website, out core.Outcome) error {
		atomic.AddInt32(&sinkCalls, 1)
		if w.URL == websites[1].URL {
			return fmt.Errorf("append failed for %s", w.URL)
		}
		return nil
	}

	summary, err := runner.Run(context.Background(), websites, prober, sink,
		BatchOptions{BatchSize: 3})
	if err == nil {
		t.Fatal("want joined sink error")
	}
	if got := atomic.LoadInt32(&sinkCalls); got != 6 {
		t.Fatalf("sink should run for every website, got %d calls", got)
	}
	if summary.Total != 6 {
		t.Fatalf("summary should be complete despite sink errors: %+v", summary)
	}
}

func TestBatchRunner_CancelBetweenBatches(t *testing.T) {
	prober := &fakeProber{}
	runner := NewBatchRunner(zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.Run(ctx, sites(20), prober, nil,
		BatchOptions{BatchSize: 10, Delay: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("want context error")
	}
	// The first batch completes before the cancelled sleep is observed.
	if got := int(atomic.LoadInt32(&prober.calls)); got != 10 {
		t.Fatalf("want 10 probes before cancellation, got %d", got)
	}
	if summary == nil || summary.Total != 20 {
		t.Fatalf("want a partial summary, got %+v", summary)
	}
}
