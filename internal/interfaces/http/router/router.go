package router

import (
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
	"github.com/erp/shopsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// EngineConfig configures NewEngine
type EngineConfig struct {
	// Mode is the gin mode: debug, release or test
	Mode           string
	TrustedProxies []string
	Tracing        middleware.TracingConfig
	Meters         *telemetry.MeterProvider
	Logger         *zap.Logger
}

// NewEngine builds a gin engine with the global middleware chain: recovery,
// access log with request id, tracing and HTTP metrics.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(cfg.Meters),
	)
	middleware.SetupValidator()
	return engine, nil
}

// Router manages HTTP route registration
type Router struct {
	engine       *gin.Engine
	apiVersion   string
	apiHandlers  []gin.HandlerFunc
	registrars   []RouteRegistrar
	rootHandlers []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware that only runs on the versioned API group
func WithAPIMiddleware(handlers ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.apiHandlers = append(r.apiHandlers, handlers...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar mounted under /api/<version>
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a registrar mounted at the engine root. Webhooks and
// health checks live outside the versioned API.
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.rootHandlers = append(r.rootHandlers, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	root := &r.engine.RouterGroup
	for _, registrar := range r.rootHandlers {
		registrar.RegisterRoutes(root)
	}

	api := r.engine.Group("/api/"+r.apiVersion, r.apiHandlers...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
