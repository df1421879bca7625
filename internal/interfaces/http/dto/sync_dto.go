package dto

import (
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// StockLevelRequest is the body of PUT /api/v1/stock-levels
type StockLevelRequest struct {
	ItemCode  string           `json:"item_code" binding:"required,max=140"`
	Warehouse string           `json:"warehouse" binding:"required,max=140"`
	Quantity  *decimal.Decimal `json:"quantity" binding:"required"`
}

// ToStockLevel converts the request to a domain StockLevel
func (r *StockLevelRequest) ToStockLevel() *integration.StockLevel {
	return &integration.StockLevel{
		ItemCode:       r.ItemCode,
		Warehouse:      r.Warehouse,
		QuantityOnHand: *r.Quantity,
	}
}

// StockLevelResponse echoes a recorded bin
type StockLevelResponse struct {
	ItemCode  string          `json:"item_code"`
	Warehouse string          `json:"warehouse"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewStockLevelResponse converts a domain StockLevel
func NewStockLevelResponse(level *integration.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ItemCode:  level.ItemCode,
		Warehouse: level.Warehouse,
		Quantity:  level.QuantityOnHand,
		UpdatedAt: level.UpdatedAt,
	}
}

// SyncFailureResponse is one skipped unit of work
type SyncFailureResponse struct {
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// StageResultResponse summarizes one stage of a pass
type StageResultResponse struct {
	Stage        string                `json:"stage"`
	Status       string                `json:"status"`
	TotalCount   int                   `json:"total_count"`
	SuccessCount int                   `json:"success_count"`
	SkippedCount int                   `json:"skipped_count"`
	FailedCount  int                   `json:"failed_count"`
	FailedItems  []SyncFailureResponse `json:"failed_items,omitempty"`
}

// SyncRunResponse is the body returned by POST /api/v1/sync
type SyncRunResponse struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Duration   string                `json:"duration"`
	Stages     []StageResultResponse `json:"stages"`
}

// NewSyncRunResponse converts a pass report. results may be nil for a pass that
// stopped before any stage ran.
func NewSyncRunResponse(startedAt, finishedAt time.Time, results []*integration.SyncResult) SyncRunResponse {
	resp := SyncRunResponse{
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt).Round(time.Millisecond).String(),
		Stages:     make([]StageResultResponse, 0, len(results)),
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		stage := StageResultResponse{
			Stage:        r.Stage,
			Status:       string(r.Status),
			TotalCount:   r.TotalCount,
			SuccessCount: r.SuccessCount,
			SkippedCount: r.SkippedCount,
			FailedCount:  r.FailedCount,
		}
		for _, f := range r.FailedItems {
			stage.FailedItems = append(stage.FailedItems, SyncFailureResponse{
				Reference: f.Reference,
				Message:   f.Message,
			})
		}
		resp.Stages = append(resp.Stages, stage)
	}
	return resp
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	GoVersion string            `json:"go_version"`
	Checks    map[string]string `json:"checks"`
	Scheduler *SchedulerStatus  `json:"scheduler,omitempty"`
}

// SchedulerStatus reports the last scheduled pass
type SchedulerStatus struct {
	Running     bool       `json:"running"`
	JobID       string     `json:"job_id,omitempty"`
	Trigger     string     `json:"trigger,omitempty"`
	Status      string     `json:"status,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
