// Package postgres implements the store interfaces on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("open migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Websites() store.WebsiteRepo { return &websiteRepo{db: s.db} }
func (s *Store) Config() store.ConfigRepo    { return &configRepo{db: s.db} }
func (s *Store) Logs() store.LogRepo         { return &logRepo{db: s.db} }

type websiteRepo struct {
	db *sqlx.DB
}

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
		INSERT INTO websites (
			id, url, name, status, last_checked_at,
			failed_count, status_message, created_at, updated_at
		) VALUES (
			:id, :url, :name, :status, :last_checked_at,
			:failed_count, :status_message, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, w)
	return err
}

func (r *websiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Website, error) {
	var w core.Website
	err := r.db.GetContext(ctx, &w, `SELECT * FROM websites WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *websiteRepo) ListAll(ctx context.Context) ([]*core.Website, error) {
	websites := []*core.Website{}
	err := r.db.SelectContext(ctx, &websites, `SELECT * FROM websites ORDER BY created_at ASC`)
	return websites, err
}

func (r *websiteRepo) ListByStatus(ctx context.Context, status core.WebsiteStatus, page store.Page) ([]*core.Website, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM websites WHERE status = $1`, status); err != nil {
		return nil, 0, err
	}

	websites := []*core.Website{}
	query := `
		SELECT * FROM websites
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &websites, query, status, page.Size, page.Offset())
	return websites, total, err
}

func (r *websiteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, upd core.StatusUpdate) error {
	query := `
		UPDATE websites SET
			status = $2,
			last_checked_at = $3,
			failed_count = $4,
			status_message = $5,
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		id, upd.Status, upd.LastCheckedAt, upd.FailedCount, upd.StatusMessage)
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
	rows := []struct {
		Status core.WebsiteStatus `db:"status"`
		Count  int                `db:"count"`
	}{}
	query := `SELECT status, COUNT(*) AS count FROM websites GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	counts := make(map[core.WebsiteStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

type configRepo struct {
	db *sqlx.DB
}

func (r *configRepo) Get(ctx context.Context) (*core.MonitorConfig, error) {
	var cfg core.MonitorConfig
	query := `
		SELECT check_interval, timeout, max_retries, enabled, updated_at
		FROM monitor_config WHERE id = TRUE`
	err := r.db.GetContext(ctx, &cfg, query)
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
	return &cfg, nil
}

func (r *configRepo) Update(ctx context.Context, cfg *core.MonitorConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO monitor_config (id, check_interval, timeout, max_retries, enabled, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			check_interval = $1,
			timeout = $2,
			max_retries = $3,
			enabled = $4,
			updated_at = $5`

	_, err := r.db.ExecContext(ctx, query,
		cfg.CheckInterval, cfg.Timeout, cfg.MaxRetries, cfg.Enabled, cfg.UpdatedAt)
	return err
}

type logRepo struct {
	db *sqlx.DB
}

func (r *logRepo) Append(ctx context.Context, l *core.CheckLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO check_logs (
			id, website_id, status, http_status,
			response_time_ms, error_message, checked_at
		) VALUES (
			:id, :website_id, :status, :http_status,
			:response_time_ms, :error_message, :checked_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, l)
	return err
}

func (r *logRepo) ListByWebsite(ctx context.Context, websiteID uuid.UUID, page store.Page) ([]*core.CheckLog, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM check_logs WHERE website_id = $1`, websiteID); err != nil {
		return nil, 0, err
	}

	logs := []*core.CheckLog{}
	query := `
		SELECT * FROM check_logs
		WHERE website_id = $1
		ORDER BY checked_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &logs, query, websiteID, page.Size, page.Offset())
	return logs, total, err
}

func (r *logRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM check_logs WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *logRepo) LastCheckedAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime
	if err := r.db.GetContext(ctx, &last, `SELECT MAX(checked_at) FROM check_logs`); err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}
