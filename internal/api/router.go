// Package api exposes the monitor's operations over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/api/handlers"
	"github.com/uied-nav/sitemonitor/internal/api/middleware"
	"github.com/uied-nav/sitemonitor/internal/metrics"
	"github.com/uied-nav/sitemonitor/internal/monitor"
	"github.com/uied-nav/sitemonitor/internal/store"
)

type Server struct {
	Router *gin.Engine
}

func NewServer(mode string, svc *monitor.Service, scheduler *monitor.Scheduler, websites store.WebsiteRepo, collector *metrics.Collector, logger *zap.Logger) *Server {
	gin.SetMode(mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	h := handlers.NewHandler(svc, scheduler, websites, logger)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1/monitor")
	{
		v1.GET("/config", h.GetConfig)
		v1.PUT("/config", h.UpdateConfig)

		v1.POST("/websites", h.CreateWebsite)
		v1.GET("/websites", h.ListWebsites)
		v1.GET("/websites/:id", h.GetWebsite)
		v1.GET("/websites/:id/logs", h.GetWebsiteLogs)
		v1.POST("/websites/:id/reset", h.ResetWebsiteStatus)

		// Probe-triggering endpoints sit behind the IP rate limit.
		probe := v1.Group("", middleware.RateLimit(30, 10))
		{
			probe.POST("/websites/:id/check", h.CheckWebsite)
			probe.POST("/check-all", h.CheckAll)
			probe.POST("/job/run", h.RunMonitorNow)
		}

		v1.GET("/statistics", h.GetStatistics)
		v1.GET("/failed-websites", h.GetFailedWebsites)

		v1.POST("/job/start", h.StartMonitorJob)
		v1.POST("/job/stop", h.StopMonitorJob)

		v1.DELETE("/logs", h.CleanupLogs)
	}

	return &Server{Router: router}
}
