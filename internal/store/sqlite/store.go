// Package sqlite implements the store interfaces on SQLite using the pure-Go
// modernc driver. Intended for single-binary deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/store"
)

type Store struct {
	db *sql.DB
}

// New opens the database file (":memory:" works) and creates the schema.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS websites (
	id              TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'unchecked',
	last_checked_at TEXT,
	failed_count    INTEGER NOT NULL DEFAULT 0,
	status_message  TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_websites_status ON websites (status);

CREATE TABLE IF NOT EXISTS monitor_config (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	check_interval INTEGER NOT NULL DEFAULT 86400,
	timeout        INTEGER NOT NULL DEFAULT 10000,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	enabled        INTEGER NOT NULL DEFAULT 1,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS check_logs (
	id               TEXT PRIMARY KEY,
	website_id       TEXT NOT NULL,
	status           TEXT NOT NULL,
	http_status      INTEGER,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	checked_at       TEXT NOT NULL,
	FOREIGN KEY(website_id) REFERENCES websites(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_check_logs_website ON check_logs (website_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_check_logs_checked_at ON check_logs (checked_at);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Websites() store.WebsiteRepo { return &websiteRepo{db: s.db} }
func (s *Store) Config() store.ConfigRepo    { return &configRepo{db: s.db} }
func (s *Store) Logs() store.LogRepo         { return &logRepo{db: s.db} }

// Timestamps are stored as RFC3339Nano text, the usual sqlite convention.
func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := fmtTime(*t)
	return &v
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type websiteRepo struct {
	db *sql.DB
}

func scanWebsite(row interface{ Scan(...any) error }) (*core.Website, error) {
	var (
		w             core.Website
		id            string
		lastCheckedAt *string
		createdAt     string
		updatedAt     string
	)
	err := row.Scan(&id, &w.URL, &w.Name, &w.Status, &lastCheckedAt,
		&w.FailedCount, &w.StatusMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if w.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse website id: %w", err)
	}
	if w.LastCheckedAt, err = parseTimePtr(lastCheckedAt); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

const websiteColumns = `id, url, name, status, last_checked_at, failed_count, status_message, created_at, updated_at`

func (r *websiteRepo) Create(ctx context.Context, w *core.Website) error {
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

	query := `
INSERT INTO websites (` + websiteColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		w.ID.String(), w.URL, w.Name, w.Status, fmtTimePtr(w.LastCheckedAt),
		w.FailedCount, w.StatusMessage, fmtTime(w.CreatedAt), fmtTime(w.UpdatedAt))
	return err
}

func (r *websiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Website, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE id = ?`, id.String())
	w, err := scanWebsite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return w, err
}

func (r *websiteRepo) ListAll(ctx context.Context) ([]*core.Website, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+websiteColumns+` FROM websites ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	websites := []*core.Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}

func (r *websiteRepo) ListByStatus(ctx context.Context, status core.WebsiteStatus, page store.Page) ([]*core.Website, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM websites WHERE status = ?`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+websiteColumns+` FROM websites
WHERE status = ?
ORDER BY updated_at DESC
LIMIT ? OFFSET ?`, status, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	websites := []*core.Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, 0, err
		}
		websites = append(websites, w)
	}
	return websites, total, rows.Err()
}

func (r *websiteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, upd core.StatusUpdate) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE websites SET
	status = ?,
	last_checked_at = ?,
	failed_count = ?,
	status_message = ?,
	updated_at = ?
WHERE id = ?`,
		upd.Status, fmtTimePtr(upd.LastCheckedAt), upd.FailedCount,
		upd.StatusMessage, fmtTime(time.Now()), id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *websiteRepo) CountByStatus(ctx context.Context) (map[core.WebsiteStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM websites GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[core.WebsiteStatus]int)
	for rows.Next() {
		var status core.WebsiteStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type configRepo struct {
	db *sql.DB
}

func (r *configRepo) Get(ctx context.Context) (*core.MonitorConfig, error) {
	var (
		cfg       core.MonitorConfig
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT check_interval, timeout, max_retries, enabled, updated_at
FROM monitor_config WHERE id = 1`).Scan(
		&cfg.CheckInterval, &cfg.Timeout, &cfg.MaxRetries, &cfg.Enabled, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		def := core.DefaultMonitorConfig()
		if err := r.Update(ctx, &def); err != nil {
			return nil, err
		}
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepo) Update(ctx context.Context, cfg *core.MonitorConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO monitor_config (id, check_interval, timeout, max_retries, enabled, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	check_interval = excluded.check_interval,
	timeout = excluded.timeout,
	max_retries = excluded.max_retries,
	enabled = excluded.enabled,
	updated_at = excluded.updated_at`,
		cfg.CheckInterval, cfg.Timeout, cfg.MaxRetries, cfg.Enabled, fmtTime(cfg.UpdatedAt))
	return err
}

type logRepo struct {
	db *sql.DB
}

const logColumns = `id, website_id, status, http_status, response_time_ms, error_message, checked_at`

func scanLog(row interface{ Scan(...any) error }) (*core.CheckLog, error) {
	var (
		l         core.CheckLog
		id        string
		websiteID string
		checkedAt string
	)
	err := row.Scan(&id, &websiteID, &l.Status, &l.HTTPStatus,
		&l.ResponseTimeMs, &l.ErrorMessage, &checkedAt)
	if err != nil {
		return nil, err
	}
	if l.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse log id: %w", err)
	}
	if l.WebsiteID, err = uuid.Parse(websiteID); err != nil {
		return nil, fmt.Errorf("parse log website id: %w", err)
	}
	if l.CheckedAt, err = parseTime(checkedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *logRepo) Append(ctx context.Context, l *core.CheckLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO check_logs (`+logColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.WebsiteID.String(), l.Status, l.HTTPStatus,
		l.ResponseTimeMs, l.ErrorMessage, fmtTime(l.CheckedAt))
	return err
}

func (r *logRepo) ListByWebsite(ctx context.Context, websiteID uuid.UUID, page store.Page) ([]*core.CheckLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM check_logs WHERE website_id = ?`, websiteID.String()).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+logColumns+` FROM check_logs
WHERE website_id = ?
ORDER BY checked_at DESC
LIMIT ? OFFSET ?`, websiteID.String(), page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []*core.CheckLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

func (r *logRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM check_logs WHERE checked_at < ?`, fmtTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *logRepo) LastCheckedAt(ctx context.Context) (*time.Time, error) {
	var last *string
	if err := r.db.QueryRowContext(ctx,
		`SELECT MAX(checked_at) FROM check_logs`).Scan(&last); err != nil {
		return nil, err
	}
	return parseTimePtr(last)
}
