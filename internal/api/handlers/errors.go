package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Internal error code for failures that carry no kind
const codeInternal = "INTERNAL_ERROR"

// StatusFor maps an error kind to its HTTP status code
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindAuthentication:
		return http.StatusUnauthorized
	case apperrors.KindAuthorization:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindState, apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes an error response and aborts the request
func WriteError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(StatusFor(appErr.Kind), ErrorResponse{
			Message: appErr.Message,
			Code:    string(appErr.Kind),
			Fields:  appErr.Fields,
		})
		return
	}

	// Log unknown errors
	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Unhandled error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Code:    codeInternal,
	})
}
