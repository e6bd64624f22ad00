package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

func fixed(status Status) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: status}
	}
}

func TestNewChecker(t *testing.T) {
	c := NewChecker(5 * time.Second)
	if c.timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", c.timeout)
	}

	// Test default timeout
	c2 := NewChecker(0)
	if c2.timeout != 5*time.Second {
		t.Errorf("Expected default timeout 5s, got %v", c2.timeout)
	}
}

func TestCheck(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("component1", fixed(StatusHealthy))
	c.Register("component2", fixed(StatusDegraded))

	results := c.Check(context.Background())
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results["component2"].Status != StatusDegraded {
		t.Errorf("Expected component2 degraded, got %s", results["component2"].Status)
	}
	if results["component1"].LastChecked.IsZero() {
		t.Error("Expected LastChecked to be set")
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]ComponentHealth
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"healthy", map[string]ComponentHealth{"a": {Status: StatusHealthy}}, StatusHealthy},
		{"degraded", map[string]ComponentHealth{
			"a": {Status: StatusHealthy},
			"b": {Status: StatusDegraded},
		}, StatusDegraded},
		{"unhealthy wins", map[string]ComponentHealth{
			"a": {Status: StatusDegraded},
			"b": {Status: StatusUnhealthy},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("Overall() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSourceCheck(t *testing.T) {
	tests := []struct {
		name     string
		statuses []types.SourceStatus
		want     Status
	}{
		{"none yet", nil, StatusHealthy},
		{"all active", []types.SourceStatus{
			{Path: "a", State: types.SourceActive},
			{Path: "b", State: types.SourceFinished},
		}, StatusHealthy},
		{"one dropped", []types.SourceStatus{
			{Path: "a", State: types.SourceActive},
			{Path: "b", State: types.SourceDropped, Err: "permission denied"},
		}, StatusDegraded},
		{"all dropped", []types.SourceStatus{
			{Path: "a", State: types.SourceDropped},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := SourceCheck(func() []types.SourceStatus { return tt.statuses })
			if got := check(context.Background()).Status; got != tt.want {
				t.Errorf("SourceCheck() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("sources", fixed(tt.status))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			c.HTTPHandler()(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected status code %d, got %d", tt.wantCode, w.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Status != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, response.Status)
			}
		})
	}
}
