package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/api"
	"github.com/uied-nav/sitemonitor/internal/config"
	"github.com/uied-nav/sitemonitor/internal/logging"
	"github.com/uied-nav/sitemonitor/internal/metrics"
	"github.com/uied-nav/sitemonitor/internal/monitor"
	"github.com/uied-nav/sitemonitor/internal/store"
	"github.com/uied-nav/sitemonitor/internal/store/memory"
	"github.com/uied-nav/sitemonitor/internal/store/postgres"
	"github.com/uied-nav/sitemonitor/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger, err := logging.New(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	websites, configs, logs, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	collector := metrics.NewCollector()

	svc := monitor.NewService(websites, configs, logs, collector, logger, monitor.Options{
		UserAgent: cfg.Probe.UserAgent,
		ProbeRPS:  cfg.Probe.RPS,
	})

	schedule := monitor.DailyAt(cfg.Scheduler.Hour, cfg.Scheduler.Minute, cfg.Location())
	scheduler := monitor.NewScheduler(svc, schedule, cfg.Scheduler.RetentionDays, logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(cfg.Server.Mode, svc, scheduler, websites, collector, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (store.WebsiteRepo, store.ConfigRepo, store.LogRepo, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewConnection(cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		s := postgres.New(db)
		return s.Websites(), s.Config(), s.Logs(), func() { db.Close() }, nil

	case "sqlite":
		dsn := cfg.Database.URL
		if dsn == "" {
			dsn = "sitemonitor.db"
		}
		s, err := sqlite.New(context.Background(), dsn)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s.Websites(), s.Config(), s.Logs(), func() { s.Close() }, nil

	case "memory":
		s := memory.New()
		return s.Websites(), s.Config(), s.Logs(), func() {}, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
