package integration

import (
	"errors"
	"fmt"
	"net/http"
)

// ---------------------------------------------------------------------------
// Sentinel Errors
// ---------------------------------------------------------------------------

var (
	// Integration state errors
	ErrIntegrationDisabled  = errors.New("integration: shopify integration is disabled")
	ErrSettingsNotFound     = errors.New("integration: settings not found")
	ErrSyncAlreadyRunning   = errors.New("integration: sync already running")
	ErrRemoteUnavailable    = errors.New("integration: remote platform temporarily unavailable")
	ErrRemoteInvalidPayload = errors.New("integration: invalid remote payload")
	ErrRemoteRateLimited    = errors.New("integration: remote platform rate limited")

	// Store errors
	ErrItemNotFound      = errors.New("integration: item not found")
	ErrAttributeNotFound = errors.New("integration: item attribute not found")
	ErrCustomerNotFound  = errors.New("integration: customer not found")
	ErrOrderNotFound     = errors.New("integration: order not found")
	ErrInvoiceNotFound   = errors.New("integration: invoice not found")
	ErrDeliveryNotFound  = errors.New("integration: delivery not found")
	ErrStockNotFound     = errors.New("integration: stock level not found")
	ErrPriceNotFound     = errors.New("integration: price entry not found")
	ErrDuplicateExternal = errors.New("integration: external id already mapped")

	// Validation errors
	ErrInvalidExternalID   = errors.New("integration: invalid external id")
	ErrInvalidItemCode     = errors.New("integration: invalid item code")
	ErrInvalidCustomerName = errors.New("integration: customer name is required")
	ErrInvalidTemplateRef  = errors.New("integration: variant must reference a template item")
	ErrOrderNotSubmitted   = errors.New("integration: order is not submitted")
	ErrOrderAlreadyBilled  = errors.New("integration: order is already fully billed")
	ErrVariantMappingFails = errors.New("integration: created variants do not match local variants")
)

// ---------------------------------------------------------------------------
// ConfigurationError
// ---------------------------------------------------------------------------

// ConfigurationError reports missing or invalid settings. It is fatal for the unit
// being processed and is never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "integration: configuration error: " + e.Message
	}
	return fmt.Sprintf("integration: configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// ---------------------------------------------------------------------------
// RemoteHTTPError
// ---------------------------------------------------------------------------

// RemoteHTTPError is returned for any non-2xx response from the remote platform.
type RemoteHTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteHTTPError) Error() string {
	msg := fmt.Sprintf("integration: remote %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether the remote resource is gone, which marks a stale mapping.
func (e *RemoteHTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Is lets errors.Is match rate limiting and auth failures on the status code.
func (e *RemoteHTTPError) Is(target error) bool {
	switch target {
	case ErrRemoteRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrRemoteUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// IsRemoteNotFound reports whether err carries a 404 from the remote platform.
func IsRemoteNotFound(err error) bool {
	var httpErr *RemoteHTTPError
	return errors.As(err, &httpErr) && httpErr.IsNotFound()
}

// ---------------------------------------------------------------------------
// AuthenticationError
// ---------------------------------------------------------------------------

// AuthenticationError reports a webhook whose signature or body could not be verified.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "integration: webhook authentication failed: " + e.Reason
}

// ---------------------------------------------------------------------------
// ResolutionGap
// ---------------------------------------------------------------------------

// ResolutionGap reports a referenced entity that is missing locally and cannot be
// created. The caller skips the sub-unit and continues.
type ResolutionGap struct {
	Entity    string
	Reference string
	Cause     error
}

func (e *ResolutionGap) Error() string {
	msg := fmt.Sprintf("integration: cannot resolve %s %q", e.Entity, e.Reference)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolutionGap) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err must stop the whole pass and trip the circuit breaker:
// configuration errors and 401/403 from the remote API.
func IsFatal(err error) bool {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}
	var httpErr *RemoteHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	return false
}
