package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// requestIDFromContext extracts the request ID injected by the HTTP layer.
func requestIDFromContext(ctx context.Context) string {
	val := ctx.Value("requestID")
	if requestID, ok := val.(string); ok {
		return requestID
	}
	return ""
}

// ErrorType categorises an error for HTTP mapping and alerting.
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL"
	ErrorTypeExternal      ErrorType = "EXTERNAL"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	ErrorTypeUnavailable   ErrorType = "UNAVAILABLE"
)

// Layer identifies where in the service an error originated.
type Layer string

const (
	LayerDomain         Layer = "domain"
	LayerHandler        Layer = "handler"
	LayerRoute          Layer = "route"
	LayerInfrastructure Layer = "infrastructure"
	LayerCommon         Layer = "common"
)

// PlatformError carries layer, category and request metadata alongside the
// wrapped error.
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Message   string
	Err       error
	Context   map[string]any
	RequestID string
	Layer     Layer
	Timestamp time.Time
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s][%s] %s: %v", e.Layer, e.Type, e.UUID, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s][%s] %s", e.Layer, e.Type, e.UUID, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewError creates a PlatformError for the given layer and type.
func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error) *PlatformError {
	return &PlatformError{
		UUID:      uuid.NewString(),
		Type:      errorType,
		Message:   message,
		Err:       err,
		RequestID: requestIDFromContext(ctx),
		Layer:     layer,
		Timestamp: time.Now().UTC(),
		Context:   map[string]any{},
	}
}

// AsError wraps err into a PlatformError unless it already is one.
func AsError(ctx context.Context, layer Layer, err error, message string) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return NewError(ctx, layer, ErrorTypeInternal, message, err)
}

// HTTPStatus maps an error type to a response status code.
func HTTPStatus(err error) int {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnavailable, ErrorTypeExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Log writes the error with its metadata at the appropriate level.
func Log(logger zerolog.Logger, err error) {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		logger.Error().Err(err).Msg("unclassified error")
		return
	}
	event := logger.Error()
	if pe.Type == ErrorTypeValidation || pe.Type == ErrorTypeNotFound {
		event = logger.Warn()
	}
	event.
		Str("error_uuid", pe.UUID).
		Str("layer", string(pe.Layer)).
		Str("type", string(pe.Type)).
		Str("request_id", pe.RequestID).
		Err(pe.Err).
		Msg(pe.Message)
}
