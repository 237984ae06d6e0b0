package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/services/coordination-api/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code      string `json:"code,omitempty"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError handles domain errors and returns appropriate HTTP responses
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		errorMessage := platformErr.Message
		if errorMessage == "" {
			errorMessage = message
		}

		reqCtx.AbortWithStatusJSON(platformerrors.HTTPStatus(err), ErrorResponse{
			Code:      platformErr.UUID,
			Error:     errorMessage,
			Message:   errorMessage,
			RequestID: platformErr.RequestID,
		})
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:   message,
		Message: message,
	})
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil)

	reqCtx.AbortWithStatusJSON(platformerrors.HTTPStatus(err), ErrorResponse{
		Code:      err.UUID,
		Error:     message,
		Message:   message,
		RequestID: err.RequestID,
	})
}
