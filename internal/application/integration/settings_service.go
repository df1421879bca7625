package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// SettingsService owns the persisted integration settings and the enable flag.
type SettingsService struct {
	repo    integration.SettingsRepository
	factory integration.GatewayFactory
	logger  *zap.Logger
}

// NewSettingsService creates a SettingsService
func NewSettingsService(repo integration.SettingsRepository, factory integration.GatewayFactory, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, factory: factory, logger: logger.Named("settings")}
}

// Load returns the current settings
func (s *SettingsService) Load(ctx context.Context) (*integration.Settings, error) {
	return s.repo.Load(ctx)
}

// Seed stores initial settings unless a settings row already exists. It reports
// whether the seed was written.
func (s *SettingsService) Seed(ctx context.Context, initial *integration.Settings) (bool, error) {
	_, err := s.repo.Load(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, integration.ErrSettingsNotFound) {
		return false, err
	}
	if err := s.repo.Save(ctx, initial); err != nil {
		return false, fmt.Errorf("seed settings: %w", err)
	}
	s.logger.Info("Integration settings seeded", zap.Bool("enabled", initial.Enabled))
	return true, nil
}

// Validate checks required credentials and performs an authenticated read against
// the remote platform. Any failure disables the integration.
func (s *SettingsService) Validate(ctx context.Context) error {
	settings, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return s.disable(ctx, err)
	}
	sess, err := NewSession(settings, s.factory)
	if err != nil {
		return s.disable(ctx, err)
	}
	if err := sess.Remote.VerifyCredentials(ctx); err != nil {
		return s.disable(ctx, fmt.Errorf("verify credentials: %w", err))
	}
	return nil
}

// Disable turns the integration off after an unrecoverable failure.
func (s *SettingsService) Disable(ctx context.Context, cause error) error {
	return s.disable(ctx, cause)
}

func (s *SettingsService) disable(ctx context.Context, cause error) error {
	s.logger.Error("Disabling integration", zap.Error(cause))
	if err := s.repo.SetEnabled(ctx, false); err != nil {
		return errors.Join(cause, fmt.Errorf("disable integration: %w", err))
	}
	return cause
}

// WebhookSecret returns the key inbound webhooks are signed with
func (s *SettingsService) WebhookSecret(ctx context.Context) (string, error) {
	settings, err := s.repo.Load(ctx)
	if err != nil {
		return "", err
	}
	return settings.WebhookSecret(), nil
}
