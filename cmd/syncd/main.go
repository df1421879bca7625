package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appintegration "github.com/erp/shopsync/internal/application/integration"
	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/cache"
	"github.com/erp/shopsync/internal/infrastructure/config"
	"github.com/erp/shopsync/internal/infrastructure/ecommerce"
	"github.com/erp/shopsync/internal/infrastructure/event"
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/infrastructure/persistence"
	"github.com/erp/shopsync/internal/infrastructure/scheduler"
	"github.com/erp/shopsync/internal/infrastructure/storage"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"github.com/erp/shopsync/internal/interfaces/http/handler"
	"github.com/erp/shopsync/internal/interfaces/http/middleware"
	"github.com/erp/shopsync/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	registerWebhooks := flag.Bool("register-webhooks", false, "subscribe every handled topic at the configured callback address and exit")
	deleteWebhooks := flag.Bool("delete-webhooks", false, "delete every webhook subscription on the shop and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting shop sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// ---------------------------------------------------------------------
	// Telemetry
	// ---------------------------------------------------------------------

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if lp.IsEnabled() {
		log = lp.Bridge(log, zapcore.InfoLevel)
	}

	var syncMetrics *telemetry.SyncMetrics
	if mp.IsEnabled() {
		syncMetrics, err = telemetry.NewSyncMetrics(mp.Meter(telemetry.TracerName), log)
		if err != nil {
			log.Fatal("Failed to create sync metrics", zap.Error(err))
		}
	}

	// ---------------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------------

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	repos := appintegration.Repositories{
		Items:      persistence.NewGormItemRepository(db.DB),
		Attributes: persistence.NewGormAttributeRepository(db.DB),
		ItemGroups: persistence.NewGormItemGroupRepository(db.DB),
		Prices:     persistence.NewGormPriceRepository(db.DB),
		Stock:      persistence.NewGormStockRepository(db.DB),
		Customers:  persistence.NewGormCustomerRepository(db.DB),
		Orders:     persistence.NewGormOrderRepository(db.DB),
		Invoices:   persistence.NewGormInvoiceRepository(db.DB),
		Deliveries: persistence.NewGormDeliveryRepository(db.DB),
		Settings:   persistence.NewGormSettingsRepository(db.DB),
		Series:     persistence.NewGormNamingSeries(db.DB),
	}

	// ---------------------------------------------------------------------
	// Remote gateway and application services
	// ---------------------------------------------------------------------

	factory := ecommerce.NewGatewayFactory(ecommerce.ClientConfig{
		Timeout:    cfg.Shopify.Timeout,
		APIVersion: cfg.Shopify.APIVersion,
		MaxRetries: cfg.Shopify.MaxRetries,
		MaxBackoff: cfg.Shopify.MaxBackoff,
		PageSize:   cfg.Shopify.PageSize,
	}, log)
	factory.SetSyncMetrics(syncMetrics)

	settingsService := appintegration.NewSettingsService(repos.Settings, factory, log)
	catalogService := appintegration.NewCatalogSyncService(repos, log)
	customerService := appintegration.NewCustomerSyncService(repos, log)
	resolver := appintegration.NewEntityResolver(repos)
	orderService := appintegration.NewOrderSyncService(repos, resolver, customerService, catalogService, log)
	reconciler := appintegration.NewInventoryReconciler(repos, catalogService, log)
	driver := appintegration.NewSyncDriver(settingsService, factory, catalogService, customerService, orderService, reconciler, log)
	dispatcher := appintegration.NewWebhookDispatcher(repos.Settings, factory, catalogService, customerService, orderService, log)

	catalogService.SetSyncMetrics(syncMetrics)
	customerService.SetSyncMetrics(syncMetrics)
	orderService.SetSyncMetrics(syncMetrics)
	reconciler.SetSyncMetrics(syncMetrics)
	driver.SetSyncMetrics(syncMetrics)
	dispatcher.SetSyncMetrics(syncMetrics)

	// Seed persisted settings from config on first start
	seeded, err := settingsService.Seed(ctx, settingsFromConfig(cfg.Shopify))
	if err != nil {
		log.Fatal("Failed to seed integration settings", zap.Error(err))
	}
	if !seeded {
		log.Debug("integration settings already present, config seed ignored")
	}

	if *registerWebhooks || *deleteWebhooks {
		registrar := appintegration.NewWebhookRegistrar(dispatcher.Topics(), log)
		code := runWebhookCommand(ctx, registrar, settingsService, factory, *deleteWebhooks, log)
		_ = db.Close()
		_ = log.Sync()
		os.Exit(code)
	}

	// ---------------------------------------------------------------------
	// Event bus
	// ---------------------------------------------------------------------

	eventBus := event.NewInMemoryEventBus(log)
	catalogService.SetEventPublisher(eventBus)
	orderService.SetEventPublisher(eventBus)
	reconciler.SetEventPublisher(eventBus)

	// Bin changes push the single item upstream
	eventBus.Subscribe(appintegration.NewStockLevelChangedHandler(repos, factory, reconciler, log))

	var kafkaForwarder *event.KafkaForwarder
	if cfg.Kafka.Enabled {
		kafkaForwarder = event.NewKafkaForwarder(event.NewKafkaWriter(cfg.Kafka), log)
		eventBus.Subscribe(kafkaForwarder)
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	stockService := appintegration.NewStockService(repos, eventBus, log)

	// ---------------------------------------------------------------------
	// Item images and webhook dedupe
	// ---------------------------------------------------------------------

	checks := map[string]handler.Pinger{"database": sqlDB}

	switch {
	case cfg.Storage.Enabled:
		images, err := storage.NewS3ImageSource(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize image storage", zap.Error(err))
		}
		catalogService.SetImageSource(images)
		checks["storage"] = handler.PingFunc(images.Ping)
	case cfg.Storage.LocalDir != "":
		images, err := storage.NewFileImageSource(cfg.Storage.LocalDir)
		if err != nil {
			log.Fatal("Failed to open local image directory", zap.Error(err))
		}
		catalogService.SetImageSource(images)
	default:
		log.Warn("No image source configured, item images will not be uploaded")
	}

	idempotencyStore, err := cache.NewIdempotencyStore(cfg.Redis, cfg.App.Env != "production", log)
	if err != nil {
		log.Fatal("Failed to initialize webhook dedupe store", zap.Error(err))
	}
	dispatcher.SetIdempotencyStore(idempotencyStore, shared.IdempotencyConfig{
		TTL:     cfg.Webhook.DedupeTTL,
		Enabled: cfg.Webhook.DedupeEnabled,
	})
	if redisStore, ok := idempotencyStore.(*cache.RedisIdempotencyStore); ok {
		checks["redis"] = handler.PingFunc(redisStore.Ping)
	}

	// ---------------------------------------------------------------------
	// Scheduler
	// ---------------------------------------------------------------------

	var syncScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		syncScheduler, err = scheduler.NewScheduler(cfg.Scheduler, func(ctx context.Context) error {
			_, err := driver.Run(ctx)
			return err
		}, log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// ---------------------------------------------------------------------
	// HTTP
	// ---------------------------------------------------------------------

	ginMode := "debug"
	if cfg.App.Env == "production" {
		ginMode = "release"
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Mode:           ginMode,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Meters: mp,
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	webhookAuth := middleware.WebhookAuth(middleware.WebhookAuthConfig{
		Secrets:     settingsService,
		MaxBodySize: cfg.HTTP.MaxBodySize,
		Metrics:     syncMetrics,
		Logger:      log,
	})
	healthHandler := handler.NewHealthHandler(checks)
	if syncScheduler != nil {
		healthHandler.SetJobReporter(syncScheduler)
	}

	r := router.NewRouter(engine, router.WithAPIMiddleware(middleware.BodyLimit(cfg.HTTP.MaxBodySize)))
	r.Register(handler.NewSyncHandler(driver, cfg.Scheduler.JobTimeout)).
		Register(handler.NewStockHandler(stockService)).
		RegisterRoot(handler.NewWebhookHandler(dispatcher, webhookAuth, cfg.Webhook.HandlerTimeout)).
		RegisterRoot(healthHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if syncScheduler != nil {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if kafkaForwarder != nil {
		if err := kafkaForwarder.Close(); err != nil {
			log.Error("Error closing Kafka writer", zap.Error(err))
		}
	}
	if err := idempotencyStore.Close(); err != nil {
		log.Error("Error closing webhook dedupe store", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// settingsFromConfig maps the config file section onto the persisted settings
// used when no settings row exists yet.
func settingsFromConfig(c config.ShopifyConfig) *integration.Settings {
	priceList := c.PriceList
	if priceList == "" {
		priceList = integration.DefaultPriceList
	}
	return &integration.Settings{
		Enabled:            c.Enabled,
		AppType:            integration.AppType(c.AppType),
		ShopURL:            c.ShopURL,
		APIKey:             c.APIKey,
		Password:           c.Password,
		AccessToken:        c.AccessToken,
		SharedSecret:       c.SharedSecret,
		Warehouse:          c.Warehouse,
		PriceList:          priceList,
		CashBankAccount:    c.CashBankAccount,
		CustomerGroup:      c.CustomerGroup,
		Territory:          c.Territory,
		SalesOrderSeries:   integration.DefaultSalesOrderSeries,
		SalesInvoiceSeries: integration.DefaultSalesInvoiceSeries,
		DeliveryNoteSeries: integration.DefaultDeliveryNoteSeries,
		WebhookAddress:     c.WebhookAddress,
		TaxAccounts:        c.TaxAccounts,
	}
}

// runWebhookCommand registers or deletes the shop's webhook subscriptions and
// returns the process exit code.
func runWebhookCommand(
	ctx context.Context,
	registrar *appintegration.WebhookRegistrar,
	settings *appintegration.SettingsService,
	factory integration.GatewayFactory,
	deleteAll bool,
	log *zap.Logger,
) int {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	current, err := settings.Load(ctx)
	if err != nil {
		log.Error("Failed to load integration settings", zap.Error(err))
		return 1
	}
	sess, err := appintegration.NewSession(current, factory)
	if err != nil {
		log.Error("Failed to open remote session", zap.Error(err))
		return 1
	}

	if deleteAll {
		n, err := registrar.DeleteAll(ctx, sess)
		if err != nil {
			log.Error("Failed to delete webhooks", zap.Error(err))
			return 1
		}
		log.Info("Webhooks deleted", zap.Int("count", n))
		return 0
	}

	created, err := registrar.Register(ctx, sess)
	if err != nil {
		log.Error("Failed to register webhooks", zap.Error(err))
		return 1
	}
	log.Info("Webhooks registered",
		zap.Int("created", len(created)),
		zap.String("address", current.WebhookAddress),
	)
	return 0
}
