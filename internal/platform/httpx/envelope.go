package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/foodhub/api/internal/platform/requestctx"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the uniform response body of every endpoint.
type Envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

// Error is a failed response. Status selects "fail" for 4xx and "error" for 5xx.
type Error struct {
	Status  int
	Message string
	Data    any
}

// NewError constructs an Error, defaulting to 500.
func NewError(status int, message string) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Status: status, Message: sanitize(message, 512)}
}

// WithData attaches details such as validation fields.
func (e Error) WithData(data any) Error {
	e.Data = data
	return e
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	if message == "" {
		message = "ok"
	}
	write(w, status, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// WriteError writes a fail or error envelope carrying the request and trace identifiers.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	kind := StatusFail
	if status >= http.StatusInternalServerError {
		kind = StatusError
	}
	write(w, status, Envelope{
		Status:    kind,
		Message:   err.Message,
		Data:      err.Data,
		RequestID: sanitize(middleware.GetReqID(ctx), 80),
		TraceID:   sanitize(requestctx.TraceID(ctx), 64),
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sanitize(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
