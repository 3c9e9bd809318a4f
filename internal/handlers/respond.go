package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/platform/requestctx"
	"github.com/foodhub/api/internal/services"
)

type redactKey struct{}

// redactServerErrors marks the request so that 5xx messages are replaced by the status text.
func redactServerErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), redactKey{}, true)))
	})
}

func shouldRedact(ctx context.Context) bool {
	redact, _ := ctx.Value(redactKey{}).(bool)
	return redact
}

// statusForError maps service error kinds onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the matching failure envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := statusForError(err)
	logger := requestctx.Logger(ctx)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
		if shouldRedact(ctx) {
			message = strings.ToLower(http.StatusText(status))
		}
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	httpx.WriteError(ctx, w, httpx.NewError(status, message))
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, message))
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, what string) {
	httpx.WriteError(ctx, w, httpx.NewError(http.StatusServiceUnavailable, what+" service unavailable"))
}
