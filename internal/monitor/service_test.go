package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/metrics"
	"github.com/uied-nav/sitemonitor/internal/store"
	"github.com/uied-nav/sitemonitor/internal/store/memory"
)

// stubProber returns a canned outcome per URL.
type stubProber struct {
	verdict func(w *core.Website) core.Outcome
}

func (s *stubProber) Check(ctx context.Context, w *core.Website) core.Outcome {
	return s.verdict(w)
}

func successOutcome(w *core.Website) core.Outcome {
	code := 200
	return core.Outcome{
		WebsiteID:      w.ID,
		URL:            w.URL,
		Status:         core.CheckSuccess,
		HTTPStatus:     &code,
		ResponseTimeMs: 12,
		CheckedAt:      time.Now().UTC(),
	}
}

func failedOutcome(w *core.Website) core.Outcome {
	code := 503
	return core.Outcome{
		WebsiteID:      w.ID,
		URL:            w.URL,
		Status:         core.CheckFailed,
		HTTPStatus:     &code,
		ResponseTimeMs: 40,
		ErrorMessage:   strptr("HTTP 503"),
		CheckedAt:      time.Now().UTC(),
	}
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	mem := memory.New()
	svc := NewService(mem.Websites(), mem.Config(), mem.Logs(),
		metrics.NewCollector(), zap.NewNop(), Options{})
	return svc, mem
}

func seedWebsite(t *testing.T, mem *memory.Store, url string) *core.Website {
	t.Helper()
	w := &core.Website{URL: url, Name: url}
	if err := mem.Websites().Create(context.Background(), w); err != nil {
		t.Fatalf("seed website: %v", err)
	}
	return w
}

func TestService_GetConfigCreatesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	cfg, err := svc.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CheckInterval != 86400 || cfg.Timeout != 10000 || cfg.MaxRetries != 3 || !cfg.Enabled {
		t.Fatalf("want lazily created defaults, got %+v", cfg)
	}
}

func TestService_UpdateConfigValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := []core.MonitorConfig{
		{CheckInterval: 0, Timeout: 1000, MaxRetries: 3, Enabled: true},
		{CheckInterval: 60, Timeout: 0, MaxRetries: 3, Enabled: true},
		{CheckInterval: 60, Timeout: 1000, MaxRetries: 0, Enabled: true},
	}
	for i, cfg := range bad {
		if _, err := svc.UpdateConfig(ctx, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: want ErrInvalidConfig, got %v", i, err)
		}
	}

	updated, err := svc.UpdateConfig(ctx, core.MonitorConfig{
		CheckInterval: 3600, Timeout: 5000, MaxRetries: 2, Enabled: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Enabled || updated.Timeout != 5000 {
		t.Fatalf("update not applied: %+v", updated)
	}

	got, err := svc.GetConfig(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Timeout != 5000 || got.Enabled {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestService_SuccessTransition(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	w := seedWebsite(t, mem, "https://a.example")

	// Start from a failed state to verify the counter resets.
	now := time.Now().UTC()
	msg := "HTTP 500"
	if err := mem.Websites().UpdateStatus(ctx, w.ID, core.StatusUpdate{
		Status: core.StatusFailed, LastCheckedAt: &now, FailedCount: 4, StatusMessage: &msg,
	}); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	svc.newProber = func(time.Duration) Prober { return &stubProber{verdict: successOutcome} }

	out, err := svc.CheckWebsite(ctx, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != core.CheckSuccess {
		t.Fatalf("want success outcome, got %+v", out)
	}

	got, _ := mem.Websites().GetByID(ctx, w.ID)
	if got.Status != core.StatusActive {
		t.Errorf("want active, got %s", got.Status)
	}
	if got.FailedCount != 0 {
		t.Errorf("success must reset failed count, got %d", got.FailedCount)
	}
	if got.StatusMessage != nil {
		t.Errorf("success must clear status message, got %q", *got.StatusMessage)
	}
	if got.LastCheckedAt == nil {
		t.Error("last checked at must be set")
	}

	logs, total, _ := mem.Logs().ListByWebsite(ctx, w.ID, store.Page{Number: 1, Size: 10})
	if total != 1 || len(logs) != 1 {
		t.Fatalf("want exactly one log row, got %d", total)
	}
	if logs[0].Status != core.CheckSuccess {
		t.Errorf("log status mismatch: %+v", logs[0])
	}
}

func TestService_FailureTransitionIncrements(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	w := seedWebsite(t, mem, "https://b.example")

	svc.newProber = func(time.Duration) Prober { return &stubProber{verdict: failedOutcome} }

	for want := 1; want <= 3; want++ {
		if _, err := svc.CheckWebsite(ctx, w.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := mem.Websites().GetByID(ctx, w.ID)
		if got.Status != core.StatusFailed {
			t.Fatalf("want failed after failure %d, got %s", want, got.Status)
		}
		if got.FailedCount != want {
			t.Fatalf("want failed count %d, got %d", want, got.FailedCount)
		}
		if got.StatusMessage == nil || !strings.Contains(*got.StatusMessage, "503") {
			t.Fatalf("status message should carry the code, got %v", got.StatusMessage)
		}
	}

	// MaxRetries in config is 3, but the flip already happened on the first
	// failure; the counter just keeps growing.
	_, total, _ := mem.Logs().ListByWebsite(ctx, w.ID, store.Page{Number: 1, Size: 10})
	if total != 3 {
		t.Fatalf("want one log per probe, got %d", total)
	}
}

func TestService_ResetStatus(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	w := seedWebsite(t, mem, "https://c.example")

	svc.newProber = func(time.Duration) Prober { return &stubProber{verdict: failedOutcome} }
	if _, err := svc.CheckWebsite(ctx, w.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.ResetStatus(ctx, w.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := mem.Websites().GetByID(ctx, w.ID)
	if got.Status != core.StatusUnchecked || got.FailedCount != 0 ||
		got.LastCheckedAt != nil || got.StatusMessage != nil {
		t.Fatalf("reset incomplete: %+v", got)
	}

	if err := svc.ResetStatus(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown id, got %v", err)
	}
}

func TestService_CheckAllUpdatesEverything(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	urls := []string{"https://ok1.example", "https://bad.example", "https://ok2.example"}
	for _, u := range urls {
		seedWebsite(t, mem, u)
	}

	svc.newProber = func(time.Duration) Prober {
		return &stubProber{verdict: func(w *core.Website) core.Outcome {
			if w.URL == "https://bad.example" {
				return failedOutcome(w)
			}
			return successOutcome(w)
		}}
	}

	summary, err := svc.CheckAll(ctx, BatchOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 3 || summary.Success != 2 || summary.Failed != 1 {
		t.Fatalf("bad summary: %+v", summary)
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Failed != 1 || stats.Unchecked != 0 {
		t.Fatalf("bad statistics: %+v", stats)
	}
	if stats.Active+stats.Failed+stats.Unchecked != stats.Total {
		t.Fatalf("status counts must sum to total: %+v", stats)
	}
	if stats.ActiveRate != 66.67 {
		t.Fatalf("want active rate 66.67, got %v", stats.ActiveRate)
	}
	if stats.LastCheckAt == nil {
		t.Fatal("last check time must be set after a sweep")
	}
}

func TestService_StatisticsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 0 || stats.ActiveRate != 0 {
		t.Fatalf("want zeroes on empty set, got %+v", stats)
	}
	if stats.LastCheckAt != nil {
		t.Fatalf("want nil last check on empty history, got %v", stats.LastCheckAt)
	}
}

func TestService_CleanupLogs(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	w := seedWebsite(t, mem, "https://d.example")

	now := time.Now().UTC()
	ages := []time.Duration{
		45 * 24 * time.Hour, // old, deleted
		31 * 24 * time.Hour, // old, deleted
		29 * 24 * time.Hour, // young, kept
		time.Hour,           // young, kept
	}
	for _, age := range ages {
		if err := mem.Logs().Append(ctx, &core.CheckLog{
			WebsiteID: w.ID,
			Status:    core.CheckSuccess,
			CheckedAt: now.Add(-age),
		}); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	deleted, err := svc.CleanupLogs(ctx, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("want 2 deleted, got %d", deleted)
	}

	// Idempotent: same horizon deletes nothing further.
	deleted, err = svc.CleanupLogs(ctx, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("second cleanup should delete 0, got %d", deleted)
	}

	_, total, _ := mem.Logs().ListByWebsite(ctx, w.ID, store.Page{Number: 1, Size: 10})
	if total != 2 {
		t.Fatalf("want 2 surviving logs, got %d", total)
	}

	if _, err := svc.CleanupLogs(ctx, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig for non-positive days, got %v", err)
	}
}

func TestService_FailedWebsitesPaging(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		w := seedWebsite(t, mem, "https://f.example/"+uuid.NewString())
		now := time.Now().UTC()
		msg := "HTTP 500"
		if err := mem.Websites().UpdateStatus(ctx, w.ID, core.StatusUpdate{
			Status: core.StatusFailed, LastCheckedAt: &now, FailedCount: 1, StatusMessage: &msg,
		}); err != nil {
			t.Fatalf("seed status: %v", err)
		}
	}
	seedWebsite(t, mem, "https://healthy.example")

	websites, total, err := svc.FailedWebsites(ctx, store.Page{Number: 1, Size: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Fatalf("want total 5, got %d", total)
	}
	if len(websites) != 2 {
		t.Fatalf("want page of 2, got %d", len(websites))
	}

	websites, _, err = svc.FailedWebsites(ctx, store.Page{Number: 3, Size: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(websites) != 1 {
		t.Fatalf("want final page of 1, got %d", len(websites))
	}
}
