package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"copyroom/internal/ledger/handler"
	"copyroom/internal/platform/metrics"
	"copyroom/pkg/platform/httputil"
	authmw "copyroom/pkg/platform/middleware/auth"
	"copyroom/pkg/platform/middleware/metadata"
	"copyroom/pkg/platform/middleware/request"
	"copyroom/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

type healthCheck struct {
	name  string
	check func(context.Context) error
}

type routerDeps struct {
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	validator authmw.JWTValidator
	ledger    *handler.Handler
	health    []healthCheck
}

func newRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(request.Recovery(deps.logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(deps.logger))
	r.Use(deps.metrics.LatencyMiddleware)

	r.Get("/healthz", healthHandler(deps.health))
	r.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.validator, deps.logger))
		deps.ledger.Register(r)
	})
	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				status[c.name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[c.name] = "ok"
		}
		httputil.WriteJSON(w, code, status)
	}
}
