package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	ping      func(ctx context.Context) error
	clock     func() time.Time
	startedAt time.Time
	version   string
}

// HealthOption customises the health handlers before construction.
type HealthOption func(*HealthHandlers)

// WithHealthPing sets the readiness probe, usually the database ping.
func WithHealthPing(fn func(ctx context.Context) error) HealthOption {
	return func(h *HealthHandlers) {
		h.ping = fn
	}
}

// WithHealthClock overrides the time source, used by tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthVersion reports a build version in the health payload.
func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
	}
}

// NewHealthHandlers constructs health handlers with optional readiness checks.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock().UTC()
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz reports readiness by probing downstream dependencies.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	checks := map[string]any{}
	status := "ok"
	details := []string{}

	if h.ping != nil {
		started := h.clock()
		if err := h.ping(r.Context()); err != nil {
			status = "degraded"
			details = append(details, "database: "+err.Error())
			checks["database"] = map[string]any{"status": "degraded", "error": err.Error()}
		} else {
			checks["database"] = map[string]any{
				"status":  "ok",
				"latency": h.clock().Sub(started).String(),
			}
		}
	}

	payload := map[string]any{
		"status":    status,
		"checks":    checks,
		"details":   details,
		"timestamp": now.Format(time.RFC3339),
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, payload)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
