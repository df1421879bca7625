package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"

	appintegration "github.com/erp/shopsync/internal/application/integration"
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"github.com/erp/shopsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Webhook headers. The platform sends the X-Shopify-* forms; the short forms are
// accepted for relays that strip the vendor prefix.
const (
	HeaderShopifyHmac      = "X-Shopify-Hmac-Sha256"
	HeaderHmac             = "X-Hmac-Sha256"
	HeaderShopifyTopic     = "X-Shopify-Topic"
	HeaderTopic            = "X-Topic"
	HeaderShopifyWebhookID = "X-Shopify-Webhook-Id"
)

const (
	webhookBodyKey  = "webhook_body"
	webhookTopicKey = "webhook_topic"
	webhookIDKey    = "webhook_id"
)

// DefaultWebhookBodyLimit caps the raw body read for signature verification
const DefaultWebhookBodyLimit int64 = 5 << 20

// SecretProvider returns the key inbound webhooks are signed with
type SecretProvider interface {
	WebhookSecret(ctx context.Context) (string, error)
}

// WebhookAuthConfig configures WebhookAuth
type WebhookAuthConfig struct {
	Secrets     SecretProvider
	MaxBodySize int64
	Metrics     *telemetry.SyncMetrics
	Logger      *zap.Logger
}

// WebhookAuth verifies the HMAC signature over the raw request body before any
// handler runs. A failed check aborts with 401 and the delivery is dropped.
// On success the body, topic and delivery id are stored for WebhookFromContext.
func WebhookAuth(cfg WebhookAuthConfig) gin.HandlerFunc {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultWebhookBodyLimit
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("webhook_auth")

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		topic := firstHeader(c, HeaderShopifyTopic, HeaderTopic)
		webhookID := c.GetHeader(HeaderShopifyWebhookID)

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abortWebhook(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Webhook body exceeds maximum allowed size")
				return
			}
			abortWebhook(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Failed to read webhook body")
			return
		}

		secret, err := cfg.Secrets.WebhookSecret(ctx)
		if err != nil {
			log.Error("Failed to load webhook secret", zap.String("topic", topic), zap.Error(err))
			abortWebhook(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Webhook secret unavailable")
			return
		}

		signature := firstHeader(c, HeaderShopifyHmac, HeaderHmac)
		if err := appintegration.VerifyWebhookSignature(body, secret, signature); err != nil {
			log.Warn("Rejected webhook",
				zap.String("topic", topic),
				zap.String("webhook_id", webhookID),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			cfg.Metrics.RecordWebhook(ctx, topic, telemetry.WebhookOutcomeRejected)
			abortWebhook(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Webhook signature verification failed")
			return
		}

		ctx, _ = logger.WithWebhook(ctx, logger.FromContext(ctx), webhookID, topic)
		c.Request = c.Request.WithContext(ctx)
		c.Set(webhookBodyKey, body)
		c.Set(webhookTopicKey, topic)
		c.Set(webhookIDKey, webhookID)
		c.Next()
	}
}

// WebhookFromContext returns the verified delivery stored by WebhookAuth
func WebhookFromContext(c *gin.Context) (appintegration.WebhookEvent, bool) {
	raw, ok := c.Get(webhookBodyKey)
	if !ok {
		return appintegration.WebhookEvent{}, false
	}
	body, ok := raw.([]byte)
	if !ok {
		return appintegration.WebhookEvent{}, false
	}
	return appintegration.WebhookEvent{
		Topic:     c.GetString(webhookTopicKey),
		WebhookID: c.GetString(webhookIDKey),
		Body:      body,
	}, true
}

func firstHeader(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

func abortWebhook(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, logger.GetGinRequestID(c)))
}
