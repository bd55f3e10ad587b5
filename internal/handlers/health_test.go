package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"media-porter/internal/startup"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ledger     Pinger
		wantStatus int
		wantBody   string
		wantLedger string
	}{
		{"no ledger", nil, http.StatusOK, statusHealthy, "ok"},
		{"ledger up", fakePinger{}, http.StatusOK, statusHealthy, "ok"},
		{"ledger down", fakePinger{err: errors.New("database is locked")}, http.StatusServiceUnavailable, statusDegraded, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := New(&fakeFetcher{}, tt.ledger)
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantBody)
			}
			if resp.Ledger != tt.wantLedger {
				t.Errorf("ledger = %q, want %q", resp.Ledger, tt.wantLedger)
			}
			if resp.Version != startup.Version {
				t.Errorf("version = %q, want %q", resp.Version, startup.Version)
			}
			if resp.GoVersion == "" || resp.NumCPU == 0 {
				t.Error("system info should be populated")
			}
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()

	h := New(&fakeFetcher{}, fakePinger{err: errors.New("down")})

	w := httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodGet, "/livez", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "{\"status\":\"alive\"}\n" {
		t.Errorf("Unexpected body %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if w.Body.Len() != 0 {
		t.Errorf("HEAD response should have no body, got %q", w.Body.String())
	}
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ledger     Pinger
		wantStatus int
		wantBody   string
	}{
		{"ready", fakePinger{}, http.StatusOK, "ready"},
		{"not ready", fakePinger{err: errors.New("unable to open database file")}, http.StatusServiceUnavailable, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := New(&fakeFetcher{}, tt.ledger)
			w := httptest.NewRecorder()
			h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("status = %q, want %q", body["status"], tt.wantBody)
			}
		})
	}
}
