package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/shopsync/internal/infrastructure/scheduler"
	"github.com/erp/shopsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health check pings
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

// PingContext calls f
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// JobReporter exposes the state of the scheduled driver
type JobReporter interface {
	IsRunning() bool
	LastJob() *scheduler.Job
}

// HealthHandler serves liveness and readiness
type HealthHandler struct {
	BaseHandler
	startTime time.Time
	checks    map[string]Pinger
	jobs      JobReporter
}

// NewHealthHandler creates a HealthHandler. checks are run by name on every
// GET /health.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), checks: checks}
}

// SetJobReporter attaches the scheduler so /health reports the last pass
func (h *HealthHandler) SetJobReporter(jobs JobReporter) {
	h.jobs = jobs
}

// RegisterRoutes mounts /health and /ping
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ping", h.Ping)
}

// Ping answers 200 while the process is serving
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Health pings every dependency. Any failing check answers 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.jobs != nil {
		resp.Scheduler = schedulerStatus(h.jobs)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

func schedulerStatus(jobs JobReporter) *dto.SchedulerStatus {
	st := &dto.SchedulerStatus{Running: jobs.IsRunning()}
	job := jobs.LastJob()
	if job == nil {
		return st
	}
	st.JobID = job.ID.String()
	st.Trigger = job.Trigger
	st.Status = string(job.Status)
	st.Error = job.Error
	st.StartedAt = &job.StartedAt
	st.CompletedAt = job.CompletedAt
	return st
}
