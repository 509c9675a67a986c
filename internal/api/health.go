package api

import (
	"context"
	"net/http"
	"time"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Pinger is a dependency the health endpoint pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports "healthy" when every dependency answers a ping, and
// 503 "degraded" otherwise.
func HealthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "healthy", Version: Version}
		status := http.StatusOK

		if len(deps) > 0 {
			resp.Checks = make(map[string]string, len(deps))
		}
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}

		respondJSON(w, status, resp)
	}
}
