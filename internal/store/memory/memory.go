// Package memory is a mutex-guarded in-memory store implementation. It backs
// unit tests and the DB_DRIVER=memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	websites map[uuid.UUID]*core.Website
	order    []uuid.UUID
	logs     []*core.CheckLog
	config   *core.MonitorConfig
}

func New() *Store {
	return &Store{
		websites: make(map[uuid.UUID]*core.Website),
		logs:     make([]*core.CheckLog, 0, 128),
	}
}

// Websites returns the repo view over s.
func (s *Store) Websites() store.WebsiteRepo { return (*websiteRepo)(s) }
func (s *Store) Config() store.ConfigRepo    { return (*configRepo)(s) }
func (s *Store) Logs() store.LogRepo         { return (*logRepo)(s) }

type websiteRepo Store

func (r *websiteRepo) Create(ctx context.Context, w *core.Website) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	if w.Status == "" {
		w.Status = core.StatusUnchecked
	}
	cp := *w
	r.websites[w.ID] = &cp
	r.order = append(r.order, w.ID)
	return nil
}

func (r *websiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Website, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.websites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *websiteRepo) ListAll(ctx context.Context) ([]*core.Website, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Website, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.websites[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *websiteRepo) ListByStatus(ctx context.Context, status core.WebsiteStatus, page store.Page) ([]*core.Website, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*core.Website, 0)
	for _, id := range r.order {
		if r.websites[id].Status == status {
			cp := *r.websites[id]
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if page.Size <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *websiteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, upd core.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.websites[id]
	if !ok {
		return store.ErrNotFound
	}
	w.Status = upd.Status
	w.LastCheckedAt = upd.LastCheckedAt
	w.FailedCount = upd.FailedCount
	w.StatusMessage = upd.StatusMessage
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *websiteRepo) CountByStatus(ctx context.Context) (map[core.WebsiteStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[core.WebsiteStatus]int)
	for _, w := range r.websites {
		counts[w.Status]++
	}
	return counts, nil
}

type configRepo Store

func (r *configRepo) Get(ctx context.Context) (*core.MonitorConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		cfg := core.DefaultMonitorConfig()
		r.config = &cfg
	}
	cp := *r.config
	return &cp, nil
}

func (r *configRepo) Update(ctx context.Context, cfg *core.MonitorConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	cp.UpdatedAt = time.Now().UTC()
	r.config = &cp
	return nil
}

type logRepo Store

func (r *logRepo) Append(ctx context.Context, l *core.CheckLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cp := *l
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *logRepo) ListByWebsite(ctx context.Context, websiteID uuid.UUID, page store.Page) ([]*core.CheckLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*core.CheckLog, 0)
	for _, l := range r.logs {
		if l.WebsiteID == websiteID {
			cp := *l
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CheckedAt.After(matched[j].CheckedAt)
	})
	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if page.Size <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *logRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	var deleted int64
	for _, l := range r.logs {
		if l.CheckedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return deleted, nil
}

func (r *logRepo) LastCheckedAt(ctx context.Context) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *time.Time
	for _, l := range r.logs {
		if latest == nil || l.CheckedAt.After(*latest) {
			t := l.CheckedAt
			latest = &t
		}
	}
	return latest, nil
}
