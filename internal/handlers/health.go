package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/repositories"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	deps    repositories.HealthRepository
	clock   func() time.Time
	started time.Time
	version string
}

type HealthOption func(*HealthHandlers)

// WithHealthDependencies plugs in the dependency checks used by /readyz.
func WithHealthDependencies(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.deps = repo
	}
}

func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
	}
}

func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.clock()
	return h
}

type healthPayload struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Uptime    string                  `json:"uptime"`
	Timestamp string                  `json:"timestamp"`
	Checks    map[string]checkPayload `json:"checks,omitempty"`
}

type checkPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Healthz reports process liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	httpx.WriteJSON(w, http.StatusOK, healthPayload{
		Status:    string(domain.HealthStatusOK),
		Version:   h.version,
		Uptime:    now.Sub(h.started).Round(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

// Readyz checks backing stores; anything but a fully healthy report yields 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := healthPayload{
		Status:    string(domain.HealthStatusOK),
		Version:   h.version,
		Uptime:    now.Sub(h.started).Round(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if h.deps == nil {
		httpx.WriteJSON(w, http.StatusOK, payload)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	report, err := h.deps.Collect(ctx)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("health_unavailable", "unable to collect dependency health", http.StatusServiceUnavailable))
		return
	}

	payload.Status = string(report.Status)
	payload.Checks = make(map[string]checkPayload, len(report.Checks))
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		payload.Checks[name] = checkPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, payload)
}
