package handler

import (
	"errors"
	"net/http"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/logger"
	"github.com/erp/shopsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, logger.GetGinRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps integration and domain errors to an HTTP response.
// Unrecognised errors become a 500 without leaking the message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var (
		cfgErr    *integration.ConfigurationError
		authErr   *integration.AuthenticationError
		remoteErr *integration.RemoteHTTPError
		domainErr *shared.DomainError
	)
	switch {
	case errors.Is(err, integration.ErrSyncAlreadyRunning):
		h.ErrorWithCode(c, dto.ErrCodeSyncRunning, "A sync pass is already running")
	case errors.Is(err, integration.ErrIntegrationDisabled):
		h.ErrorWithCode(c, dto.ErrCodeIntegrationDisabled, "The Shopify integration is disabled")
	case errors.Is(err, integration.ErrSettingsNotFound):
		h.ErrorWithCode(c, dto.ErrCodeConfiguration, "Integration settings have not been configured")
	case errors.As(err, &cfgErr):
		h.ErrorWithCode(c, dto.ErrCodeConfiguration, cfgErr.Error())
	case errors.As(err, &authErr):
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, authErr.Error())
	case errors.As(err, &remoteErr):
		h.ErrorWithCode(c, dto.ErrCodeRemoteUnavailable, remoteErr.Error())
	case errors.Is(err, integration.ErrInvalidItemCode),
		errors.Is(err, integration.ErrInvalidExternalID):
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, err.Error())
	case errors.As(err, &domainErr):
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
