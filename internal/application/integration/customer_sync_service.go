package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CustomerSyncService mirrors remote customers locally and pushes local customers
// flagged for sync that have no remote id yet.
type CustomerSyncService struct {
	customers integration.CustomerRepository
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
}

// NewCustomerSyncService creates a CustomerSyncService
func NewCustomerSyncService(repos Repositories, logger *zap.Logger) *CustomerSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerSyncService{
		customers: repos.Customers,
		logger:    logger.Named("customers"),
	}
}

// SetSyncMetrics sets the metrics recorder
func (s *CustomerSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// PullAll creates a local customer for every remote customer not mapped yet.
func (s *CustomerSyncService) PullAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageCustomerPull)

	remote, err := sess.Remote.ListCustomers(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list customers: %w", err)
	}
	for i := range remote {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		rc := &remote[i]
		_, err := s.EnsureCustomer(ctx, sess, rc)
		s.metrics.RecordEntity(ctx, StageCustomerPull, err)
		if err != nil {
			if integration.IsFatal(err) {
				return result.Finish(), err
			}
			s.logger.Warn("Failed to pull customer",
				zap.Int64("customer_id", rc.ID),
				zap.Error(err),
			)
			result.Failed(strconv.FormatInt(rc.ID, 10), err)
			continue
		}
		result.Succeeded()
	}
	return result.Finish(), nil
}

// EnsureCustomer returns the local customer for a remote customer, creating it
// (with its addresses) when missing. A concurrent create of the same remote id is
// resolved by returning the stored record.
func (s *CustomerSyncService) EnsureCustomer(ctx context.Context, sess *Session, rc *integration.RemoteCustomer) (*integration.LocalCustomer, error) {
	if rc == nil || rc.ID <= 0 {
		return nil, integration.ErrInvalidExternalID
	}
	existing, err := s.customers.FindByExternalID(ctx, rc.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, integration.ErrCustomerNotFound) {
		return nil, err
	}

	c, err := integration.NewCustomerFromRemote(rc, sess.Settings.CustomerGroup, sess.Settings.Territory)
	if err != nil {
		return nil, err
	}
	err = s.customers.Create(ctx, c)
	if errors.Is(err, integration.ErrDuplicateExternal) {
		return s.customers.FindByExternalID(ctx, rc.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create customer %d: %w", rc.ID, err)
	}
	s.logger.Info("Customer created",
		zap.Int64("customer_id", rc.ID),
		zap.String("name", c.Name),
	)
	return c, nil
}

// PushAll creates remote customers for local customers flagged for sync.
func (s *CustomerSyncService) PushAll(ctx context.Context, sess *Session) (*integration.SyncResult, error) {
	result := integration.NewSyncResult(StageCustomerPush)

	pending, err := s.customers.FindPendingPush(ctx)
	if err != nil {
		return result.Finish(), fmt.Errorf("list pending customers: %w", err)
	}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result.Finish(), err
		}
		c := &pending[i]
		err := s.pushCustomer(ctx, sess, c)
		s.metrics.RecordEntity(ctx, StageCustomerPush, err)
		if err != nil {
			if integration.IsFatal(err) {
				return result.Finish(), err
			}
			s.logger.Warn("Failed to push customer",
				zap.String("name", c.Name),
				zap.Error(err),
			)
			result.Failed(c.Name, err)
			continue
		}
		result.Succeeded()
	}
	return result.Finish(), nil
}

func (s *CustomerSyncService) pushCustomer(ctx context.Context, sess *Session, c *integration.LocalCustomer) error {
	payload := c.ToRemote()
	created, err := sess.Remote.CreateCustomer(ctx, &payload)
	if err != nil {
		return err
	}
	if created == nil || created.ID <= 0 {
		return fmt.Errorf("%w: create customer returned no id", integration.ErrRemoteInvalidPayload)
	}
	c.ExternalID = integration.ExternalID{ParentID: created.ID}
	return s.customers.Update(ctx, c)
}
