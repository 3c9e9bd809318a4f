package handlers

import (
	"net/http"
	"time"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

// HealthHandlers serves the health endpoint.
type HealthHandlers struct {
	system    services.SystemService
	clock     func() time.Time
	startedAt time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService reports dependency checks from the system service.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs HealthHandlers. Without a system service only liveness is reported.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock()
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type healthPayload struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime"`
	Timestamp   string                        `json:"timestamp"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
}

// Healthz reports 200 while the service is ok or degraded and 503 when a critical check fails.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock().UTC()
	if h.system == nil {
		httpx.WriteSuccess(w, http.StatusOK, "ok", healthPayload{
			Status:    string(domain.HealthStatusOK),
			Uptime:    now.Sub(h.startedAt).String(),
			Timestamp: now.Format(time.RFC3339),
		})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := healthPayload{
		Status:      string(report.Status),
		Version:     report.Version,
		Environment: report.Environment,
		Uptime:      report.Uptime.String(),
		Timestamp:   formatTime(report.GeneratedAt),
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
	}
	for name, check := range report.Checks {
		payload.Checks[name] = healthCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}
	if report.Status == domain.HealthStatusError {
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusServiceUnavailable, "unhealthy").WithData(payload))
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, string(report.Status), payload)
}
