// Package rest holds HTTP plumbing shared by both services' routers.
package rest

import (
	"context"
	"net/http"
	"time"

	"order-pipeline/internal/transport/rest/response"
)

const healthTimeout = 2 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerChecker reports broker connection health.
type BrokerChecker interface {
	Healthy() bool
}

// NewHealthHandler answers 200 while both the database and the broker are
// reachable, 503 otherwise. The per-dependency verdicts ride along so the
// degraded side is visible.
func NewHealthHandler(service string, db Pinger, broker BrokerChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		checks := map[string]string{"db": "ok", "broker": "ok"}
		healthy := true

		if err := db.Ping(ctx); err != nil {
			checks["db"] = err.Error()
			healthy = false
		}
		if !broker.Healthy() {
			checks["broker"] = "not connected"
			healthy = false
		}

		status := http.StatusOK
		verdict := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			verdict = "degraded"
		}

		response.JSON(w, status, map[string]any{
			"status":  verdict,
			"service": service,
			"checks":  checks,
		})
	}
}
