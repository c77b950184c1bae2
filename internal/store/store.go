package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uied-nav/sitemonitor/internal/core"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Page describes offset pagination for list queries.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Size
}

// WebsiteRepo is the persistence surface for monitored websites. The monitor
// core only reads rows and overwrites their status fields; creation and
// deletion belong to the registration layer.
type WebsiteRepo interface {
	Create(ctx context.Context, w *core.Website) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.Website, error)
	ListAll(ctx context.Context) ([]*core.Website, error)
	ListByStatus(ctx context.Context, status core.WebsiteStatus, page Page) ([]*core.Website, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, upd core.StatusUpdate) error
	CountByStatus(ctx context.Context) (map[core.WebsiteStatus]int, error)
}

// ConfigRepo stores the single monitor configuration row. Get creates the
// row with defaults when it is absent.
type ConfigRepo interface {
	Get(ctx context.Context) (*core.MonitorConfig, error)
	Update(ctx context.Context, cfg *core.MonitorConfig) error
}

// LogRepo is the append-only check history.
type LogRepo interface {
	Append(ctx context.Context, l *core.CheckLog) error
	ListByWebsite(ctx context.Context, websiteID uuid.UUID, page Page) ([]*core.CheckLog, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	LastCheckedAt(ctx context.Context) (*time.Time, error)
}
