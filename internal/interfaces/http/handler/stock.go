package handler

import (
	"context"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/interfaces/http/dto"
	"github.com/erp/shopsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// StockRecorder stores a bin change and announces it
type StockRecorder interface {
	RecordStockLevel(ctx context.Context, level *integration.StockLevel) error
}

// StockHandler accepts local stock-level changes
type StockHandler struct {
	BaseHandler
	stock StockRecorder
}

// NewStockHandler creates a StockHandler
func NewStockHandler(stock StockRecorder) *StockHandler {
	return &StockHandler{stock: stock}
}

// RegisterRoutes mounts PUT /stock-levels
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/stock-levels", h.Put)
}

// Put records the on-hand quantity of an item in a warehouse. The inventory
// push for the configured warehouse follows through the event bus.
func (h *StockHandler) Put(c *gin.Context) {
	var req dto.StockLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	level := req.ToStockLevel()
	if err := h.stock.RecordStockLevel(c.Request.Context(), level); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewStockLevelResponse(level))
}
