package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PassReport summarizes one scheduled pass
type PassReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*integration.SyncResult
}

type stageFunc func(ctx context.Context, sess *Session) (*integration.SyncResult, error)

// SyncDriver runs the engines in order: catalog, customers, orders, inventory.
// Any stage-level or fatal error disables the integration; the operator must
// re-enable it.
type SyncDriver struct {
	settings  *SettingsService
	factory   integration.GatewayFactory
	catalog   *CatalogSyncService
	customers *CustomerSyncService
	orders    *OrderSyncService
	inventory *InventoryReconciler
	mu        sync.Mutex
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
}

// NewSyncDriver creates a SyncDriver
func NewSyncDriver(
	settings *SettingsService,
	factory integration.GatewayFactory,
	catalog *CatalogSyncService,
	customers *CustomerSyncService,
	orders *OrderSyncService,
	inventory *InventoryReconciler,
	logger *zap.Logger,
) *SyncDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncDriver{
		settings:  settings,
		factory:   factory,
		catalog:   catalog,
		customers: customers,
		orders:    orders,
		inventory: inventory,
		logger:    logger.Named("driver"),
	}
}

// SetSyncMetrics sets the metrics recorder
func (d *SyncDriver) SetSyncMetrics(m *telemetry.SyncMetrics) {
	d.metrics = m
}

// Run executes one pass. It returns ErrSyncAlreadyRunning when a pass is in
// progress and ErrIntegrationDisabled when the enable flag is off.
func (d *SyncDriver) Run(ctx context.Context) (*PassReport, error) {
	if !d.mu.TryLock() {
		return nil, integration.ErrSyncAlreadyRunning
	}
	defer d.mu.Unlock()

	report := &PassReport{StartedAt: time.Now()}
	err := d.run(ctx, report)
	report.FinishedAt = time.Now()
	d.metrics.RecordPass(ctx, report.FinishedAt.Sub(report.StartedAt), err)
	return report, err
}

func (d *SyncDriver) run(ctx context.Context, report *PassReport) error {
	settings, err := d.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return integration.ErrIntegrationDisabled
	}
	sess, err := NewSession(settings, d.factory)
	if err != nil {
		return d.settings.Disable(ctx, err)
	}

	stages := []struct {
		name string
		run  stageFunc
	}{
		{StageCatalogPull, d.catalog.PullAll},
		{StageCatalogPush, d.catalog.PushAll},
		{StageCustomerPull, d.customers.PullAll},
		{StageCustomerPush, d.customers.PushAll},
		{StageOrders, d.orders.SyncAll},
		{StageInventory, d.inventory.ReconcileAll},
	}
	for _, stage := range stages {
		stageCtx, span := telemetry.StartSpan(ctx, "sync.stage", telemetry.SpanAttrStage, stage.name)
		result, err := stage.run(stageCtx, sess)
		telemetry.EndSpan(span, err)
		if result != nil {
			report.Results = append(report.Results, result)
			d.logger.Info("Stage finished",
				zap.String("stage", stage.name),
				zap.String("status", result.Status.String()),
				zap.Int("total", result.TotalCount),
				zap.Int("success", result.SuccessCount),
				zap.Int("skipped", result.SkippedCount),
				zap.Int("failed", result.FailedCount),
			)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			d.logger.Warn("Pass cancelled", zap.String("stage", stage.name), zap.Error(err))
			return err
		}
		d.logger.Error("Stage failed", zap.String("stage", stage.name), zap.Error(err))
		return d.settings.Disable(ctx, err)
	}
	return nil
}
