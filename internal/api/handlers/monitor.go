package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/monitor"
	"github.com/uied-nav/sitemonitor/internal/store"
)

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get monitor config", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type UpdateConfigRequest struct {
	CheckInterval int   `json:"check_interval" binding:"required,min=1"`
	Timeout       int   `json:"timeout" binding:"required,min=1"`
	MaxRetries    int   `json:"max_retries" binding:"required,min=1"`
	Enabled       *bool `json:"enabled" binding:"required"`
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.svc.UpdateConfig(c.Request.Context(), core.MonitorConfig{
		CheckInterval: req.CheckInterval,
		Timeout:       req.Timeout,
		MaxRetries:    req.MaxRetries,
		Enabled:       *req.Enabled,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidConfig) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to update monitor config", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) CheckWebsite(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid website id"})
		return
	}

	out, err := h.svc.CheckWebsite(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
			return
		}
		h.logger.Error("manual check failed",
			zap.String("website_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}

type CheckAllRequest struct {
	BatchSize int  `json:"batch_size" binding:"omitempty,min=1,max=100"`
	DelayMs   *int `json:"delay_ms" binding:"omitempty,min=0,max=60000"`
}

func (h *Handler) CheckAll(c *gin.Context) {
	var req CheckAllRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	opts := monitor.BatchOptions{
		BatchSize: req.BatchSize,
		Delay:     monitor.DefaultBatchDelay,
	}
	if req.DelayMs != nil {
		opts.Delay = time.Duration(*req.DelayMs) * time.Millisecond
	}

	summary, err := h.svc.CheckAll(c.Request.Context(), opts)
	if err != nil {
		// Persistence failures for individual results; the summary still
		// describes the whole sweep.
		h.logger.Warn("sweep finished with errors", zap.Error(err))
	}
	if summary == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetFailedWebsites(c *gin.Context) {
	page := pageFromQuery(c.DefaultQuery("page", "1"), c.DefaultQuery("page_size", "20"))

	websites, total, err := h.svc.FailedWebsites(c.Request.Context(), page)
	if err != nil {
		h.logger.Error("failed to list failed websites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"websites": websites,
		"pagination": gin.H{
			"page":      page.Number,
			"page_size": page.Size,
			"total":     total,
		},
	})
}

func (h *Handler) GetWebsiteLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid website id"})
		return
	}
	page := pageFromQuery(c.DefaultQuery("page", "1"), c.DefaultQuery("page_size", "20"))

	logs, total, err := h.svc.WebsiteLogs(c.Request.Context(), id, page)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
			return
		}
		h.logger.Error("failed to list website logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"page":      page.Number,
			"page_size": page.Size,
			"total":     total,
		},
	})
}

func (h *Handler) ResetWebsiteStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid website id"})
		return
	}

	if err := h.svc.ResetStatus(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
			return
		}
		h.logger.Error("failed to reset website status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) CleanupLogs(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	deleted, err := h.svc.CleanupLogs(c.Request.Context(), days)
	if err != nil {
		h.logger.Error("log cleanup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) StartMonitorJob(c *gin.Context) {
	h.scheduler.Start()
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (h *Handler) StopMonitorJob(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (h *Handler) RunMonitorNow(c *gin.Context) {
	result, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, result)
}
