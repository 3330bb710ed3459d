package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/logger"
)

// Check is a named readiness dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 2 * time.Second

// HealthHandler reports liveness when no checks are given and readiness
// otherwise. It responds 200 when every check passes and 503 when any fails,
// with a JSON body listing each check's status.
func HealthHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
			err := c.Fn(ctx)
			cancel()

			if err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
				body[c.Name] = "down"
				continue
			}
			body[c.Name] = "up"
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
