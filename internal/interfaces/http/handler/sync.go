package handler

import (
	"context"
	"time"

	appintegration "github.com/erp/shopsync/internal/application/integration"
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncRunner runs one synchronization pass
type SyncRunner interface {
	Run(ctx context.Context) (*appintegration.PassReport, error)
}

// SyncHandler exposes the manual sync trigger
type SyncHandler struct {
	BaseHandler
	driver  SyncRunner
	timeout time.Duration
}

// NewSyncHandler creates a SyncHandler. timeout bounds a manual pass the same
// way the scheduler's job timeout bounds a scheduled one.
func NewSyncHandler(driver SyncRunner, timeout time.Duration) *SyncHandler {
	return &SyncHandler{driver: driver, timeout: timeout}
}

// RegisterRoutes mounts POST /sync
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.Run)
}

// Run executes a pass and returns the per-stage results. It answers 409 while
// another pass holds the driver and 400 when the integration is disabled.
func (h *SyncHandler) Run(c *gin.Context) {
	// The pass outlives a dropped client connection.
	ctx := context.WithoutCancel(c.Request.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.driver.Run(ctx)
	if err != nil {
		logger.L(ctx).Warn("Manual sync pass failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSyncRunResponse(report.StartedAt, report.FinishedAt, report.Results))
}
