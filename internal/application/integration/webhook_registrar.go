package integration

import (
	"context"
	"fmt"

	"github.com/erp/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

const webhookFormatJSON = "json"

// WebhookRegistrar manages the remote webhook subscriptions pointing at this service.
type WebhookRegistrar struct {
	topics []string
	logger *zap.Logger
}

// NewWebhookRegistrar creates a registrar for the given topics
func NewWebhookRegistrar(topics []string, logger *zap.Logger) *WebhookRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookRegistrar{topics: topics, logger: logger.Named("webhook_registrar")}
}

// Register subscribes every topic at the configured callback address, skipping
// topics that already point there.
func (r *WebhookRegistrar) Register(ctx context.Context, sess *Session) ([]integration.RemoteWebhook, error) {
	address := sess.Settings.WebhookAddress
	if address == "" {
		return nil, integration.NewConfigurationError("webhook_address", "callback address is not configured")
	}

	existing, err := sess.Remote.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	registered := make(map[string]bool, len(existing))
	for _, w := range existing {
		if w.Address == address {
			registered[w.Topic] = true
		}
	}

	created := make([]integration.RemoteWebhook, 0, len(r.topics))
	for _, topic := range r.topics {
		if registered[topic] {
			continue
		}
		w, err := sess.Remote.CreateWebhook(ctx, &integration.RemoteWebhook{
			Topic:   topic,
			Address: address,
			Format:  webhookFormatJSON,
		})
		if err != nil {
			return created, fmt.Errorf("create webhook %s: %w", topic, err)
		}
		r.logger.Info("Webhook registered", zap.String("topic", topic), zap.Int64("webhook_id", w.ID))
		created = append(created, *w)
	}
	return created, nil
}

// DeleteAll removes every webhook subscription of the shop.
func (r *WebhookRegistrar) DeleteAll(ctx context.Context, sess *Session) (int, error) {
	existing, err := sess.Remote.ListWebhooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list webhooks: %w", err)
	}
	deleted := 0
	for _, w := range existing {
		if err := sess.Remote.DeleteWebhook(ctx, w.ID); err != nil {
			return deleted, fmt.Errorf("delete webhook %d: %w", w.ID, err)
		}
		deleted++
	}
	r.logger.Info("Webhooks deleted", zap.Int("count", deleted))
	return deleted, nil
}
