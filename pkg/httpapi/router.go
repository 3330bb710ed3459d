package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/entitlekit/pkg/clientip"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/httpserver"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/requestid"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Deps are the collaborators served by the router. Webhook, Metrics,
// Checks and ClientIP are optional.
type Deps struct {
	Features      entitlement.Resolver
	Subscriptions subscription.Service
	Policies      policy.Engine
	Tenants       tenant.Repository
	Webhook       http.Handler
	Metrics       *metrics.Metrics
	Checks        []httpserver.Check
	ClientIP      *clientip.Resolver
	Logger        *slog.Logger
	Clock         func() time.Time
}

// NewRouter builds the HTTP API.
// Panics if a required dependency is missing.
func NewRouter(d Deps) chi.Router {
	if d.Features == nil || d.Subscriptions == nil || d.Policies == nil || d.Tenants == nil {
		panic("httpapi: features, subscriptions, policies and tenants are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}

	h := &handlers{
		features:      d.Features,
		subscriptions: d.Subscriptions,
		policies:      d.Policies,
		tenants:       d.Tenants,
		logger:        d.Logger.With(logger.Component("httpapi")),
		now:           d.Clock,
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(d.ClientIP))
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.logger))

	r.Get("/healthz", httpserver.HealthHandler(h.logger, d.Checks...))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Webhook != nil {
		r.Post("/webhooks/paddle", d.Webhook.ServeHTTP)
	}

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/features", h.listFeatures)
		r.Get("/features/{key}", h.getFeature)
		r.Get("/features/{key}/explain", h.explainFeature)
		r.Get("/subscription", h.getSubscription)
		r.Get("/subscription/decision", h.getDecision)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Envelope{Error: &ErrorDetail{Code: ErrNotFound.Code}})
	})
	return r
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				logger.RequestID(requestid.FromContext(r.Context())),
				logger.ClientIP(clientip.FromContext(r.Context())),
				logger.Duration(time.Since(start)))
		})
	}
}
