package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzReportsUptime(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	h := NewHealthHandlers(WithHealthClock(clock), WithHealthVersion("1.2.3"))

	now = now.Add(90 * time.Second)
	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["uptime"] != "1m30s" {
		t.Fatalf("unexpected uptime: %v", payload["uptime"])
	}
	if payload["version"] != "1.2.3" {
		t.Fatalf("unexpected version: %v", payload["version"])
	}
}

func TestReadyzHealthyDatabase(t *testing.T) {
	h := NewHealthHandlers(WithHealthPing(func(context.Context) error { return nil }))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}

func TestReadyzDegradedDatabase(t *testing.T) {
	h := NewHealthHandlers(WithHealthPing(func(context.Context) error {
		return errors.New("connection refused")
	}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var payload struct {
		Status  string   `json:"status"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Status != "degraded" {
		t.Fatalf("unexpected status: %q", payload.Status)
	}
	if len(payload.Details) != 1 || payload.Details[0] != "database: connection refused" {
		t.Fatalf("unexpected details: %v", payload.Details)
	}
}
