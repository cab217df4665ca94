// Package apierr maps engine errors onto HTTP responses.
package apierr

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	"github.com/lifecraft/profiler/backend/internal/store"
	"github.com/lifecraft/profiler/backend/pkg/utils"
)

// Status returns the HTTP status and a caller-safe message for err.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, profiling.ErrMissingSessionID),
		errors.Is(err, profiling.ErrEmptyInput),
		errors.Is(err, profiling.ErrUnknownModule),
		errors.Is(err, profiling.ErrModuleMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, profiling.ErrDialogueClosed),
		errors.Is(err, profiling.ErrConfirmNotReady),
		errors.Is(err, store.ErrSessionExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Respond writes err as a JSON error body. Server-side failures are logged.
func Respond(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, message := Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	_ = utils.RespondError(w, status, message)
}
