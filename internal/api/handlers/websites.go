package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/core"
	"github.com/uied-nav/sitemonitor/internal/store"
)

type CreateWebsiteRequest struct {
	URL  string `json:"url" binding:"required,url"`
	Name string `json:"name" binding:"omitempty,max=255"`
}

// CreateWebsite registers a URL for monitoring. New websites start in the
// unchecked state until the first probe.
func (h *Handler) CreateWebsite(c *gin.Context) {
	var req CreateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := &core.Website{
		ID:     uuid.New(),
		URL:    req.URL,
		Name:   req.Name,
		Status: core.StatusUnchecked,
	}
	if err := h.websites.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("failed to create website", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.logger.Info("website registered",
		zap.String("website_id", w.ID.String()),
		zap.String("url", w.URL),
	)
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWebsites(c *gin.Context) {
	websites, err := h.websites.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list websites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"websites": websites, "total": len(websites)})
}

func (h *Handler) GetWebsite(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid website id"})
		return
	}

	w, err := h.websites.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
			return
		}
		h.logger.Error("failed to get website", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, w)
}
