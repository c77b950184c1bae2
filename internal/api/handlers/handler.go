package handlers

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/uied-nav/sitemonitor/internal/monitor"
	"github.com/uied-nav/sitemonitor/internal/store"
)

type Handler struct {
	svc       *monitor.Service
	scheduler *monitor.Scheduler
	websites  store.WebsiteRepo
	logger    *zap.Logger
}

func NewHandler(svc *monitor.Service, scheduler *monitor.Scheduler, websites store.WebsiteRepo, logger *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		scheduler: scheduler,
		websites:  websites,
		logger:    logger,
	}
}

func pageFromQuery(pageStr, sizeStr string) store.Page {
	page, _ := strconv.Atoi(pageStr)
	size, _ := strconv.Atoi(sizeStr)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return store.Page{Number: page, Size: size}
}
