// Package httpapi assembles the chi router: transport-wide middleware, the
// metrics endpoint and every module's routes.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance/internal/platform/metrics"
	"attendance/internal/platform/middleware"
	dErrors "attendance/pkg/domain-errors"
	"attendance/pkg/platform/httputil"
	"attendance/pkg/platform/middleware/metadata"
	"attendance/pkg/platform/middleware/requesttime"
)

// Module registers its routes on the shared router.
type Module interface {
	Register(r chi.Router)
}

// Options configures transport-wide behavior.
type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter wires middleware in the order every request needs it: identify,
// recover, log, bound, then stamp request time and client metadata.
func NewRouter(opts Options, modules ...Module) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(opts.Logger, opts.Metrics))
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.LatencyMiddleware(opts.Metrics))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":             "method_not_allowed",
			"error_description": "method not allowed for this route",
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	for _, m := range modules {
		m.Register(r)
	}
	return r
}
