package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HealthCheck represents a health check function
type HealthCheck func(ctx context.Context) ComponentHealth

// Checker manages health checks for all components
type Checker struct {
	mu         sync.RWMutex
	components map[string]HealthCheck
	timeout    time.Duration
}

// NewChecker creates a new health checker
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Checker{
		components: make(map[string]HealthCheck),
		timeout:    timeout,
	}
}

// Register registers a health check for a component
func (c *Checker) Register(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = check
}

// Check runs all health checks concurrently
func (c *Checker) Check(ctx context.Context) map[string]ComponentHealth {
	c.mu.RLock()
	components := make(map[string]HealthCheck, len(c.components))
	for k, v := range c.components {
		components[k] = v
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]ComponentHealth, len(components))
	)

	for name, check := range components {
		wg.Add(1)
		go func(n string, chk HealthCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			result := chk(checkCtx)
			result.LastChecked = time.Now()

			mu.Lock()
			results[n] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return results
}

// Overall folds component results into one status: any unhealthy component
// makes the whole unhealthy, any degraded one makes it degraded
func Overall(results map[string]ComponentHealth) Status {
	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// HealthResponse represents the HTTP response for health checks
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// HTTPHandler returns an HTTP handler for health checks. Degraded still
// answers 200; unhealthy answers 503.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := c.Check(r.Context())
		overall := Overall(results)

		response := HealthResponse{
			Status:     overall,
			Components: results,
			Timestamp:  time.Now(),
		}

		statusCode := http.StatusOK
		if overall == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}

// SourceCheck reports on the followed sources. Dropped sources degrade the
// check; when every source has been dropped it is unhealthy.
func SourceCheck(sources func() []types.SourceStatus) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		statuses := sources()

		var active, finished, dropped int
		for _, s := range statuses {
			switch s.State {
			case types.SourceActive:
				active++
			case types.SourceFinished:
				finished++
			case types.SourceDropped:
				dropped++
			}
		}

		metadata := map[string]interface{}{
			"sources":  statuses,
			"active":   active,
			"finished": finished,
			"dropped":  dropped,
		}

		switch {
		case len(statuses) == 0:
			return ComponentHealth{Status: StatusHealthy, Message: "No sources opened yet", Metadata: metadata}
		case dropped == len(statuses):
			return ComponentHealth{Status: StatusUnhealthy, Message: "All sources dropped", Metadata: metadata}
		case dropped > 0:
			return ComponentHealth{
				Status:   StatusDegraded,
				Message:  fmt.Sprintf("%d of %d sources dropped", dropped, len(statuses)),
				Metadata: metadata,
			}
		default:
			return ComponentHealth{Status: StatusHealthy, Message: "All sources readable", Metadata: metadata}
		}
	}
}
