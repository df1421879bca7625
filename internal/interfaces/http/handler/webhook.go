package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	appintegration "github.com/erp/shopsync/internal/application/integration"
	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookDispatcher runs the handler for a verified delivery
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event appintegration.WebhookEvent) error
}

// WebhookHandler receives platform webhooks. Verification happens in the
// middleware passed to NewWebhookHandler; the handler only dispatches.
type WebhookHandler struct {
	BaseHandler
	dispatcher WebhookDispatcher
	auth       gin.HandlerFunc
	timeout    time.Duration
}

// NewWebhookHandler creates a WebhookHandler. A zero timeout leaves the request
// context unbounded.
func NewWebhookHandler(dispatcher WebhookDispatcher, auth gin.HandlerFunc, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, auth: auth, timeout: timeout}
}

// RegisterRoutes mounts POST /webhooks/shopify
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/shopify", h.auth, h.Receive)
}

// Receive dispatches a verified webhook. A handler failure answers 500 so the
// platform redelivers; deliveries are only marked processed after success.
// Configuration errors are logged and acknowledged with 200.
func (h *WebhookHandler) Receive(c *gin.Context) {
	event, ok := middleware.WebhookFromContext(c)
	if !ok {
		h.InternalError(c, "Webhook was not verified")
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	err := h.dispatcher.Dispatch(ctx, event)
	var cfgErr *integration.ConfigurationError
	if errors.As(err, &cfgErr) || errors.Is(err, integration.ErrSettingsNotFound) {
		logger.L(ctx).Warn("Webhook dropped, integration is misconfigured", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	if err != nil {
		logger.L(ctx).Error("Webhook dispatch failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
