package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"attendance/internal/attendance/eligibility"
	"attendance/internal/attendance/handler"
	attendancemetrics "attendance/internal/attendance/metrics"
	"attendance/internal/attendance/service"
	httpapi "attendance/internal/http"
	jwttoken "attendance/internal/jwt_token"
	"attendance/internal/platform/config"
	"attendance/internal/platform/httpserver"
	"attendance/internal/platform/logger"
	"attendance/internal/platform/metrics"
	ratelimitmetrics "attendance/internal/ratelimit/metrics"
	ratelimit "attendance/internal/ratelimit/middleware"
	"attendance/internal/ratelimit/store/bucket"
)

// main loads configuration and runs the server and background workers until
// SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("attendance server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("attendance server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	checker, err := newChecker(cfg.Site)
	if err != nil {
		return err
	}

	reg := prometheus.DefaultRegisterer
	backend, err := openLedger(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer backend.close(log)

	svc := service.New(backend.ledger, checker,
		service.WithLogger(log),
		service.WithMetrics(attendancemetrics.New(reg)),
		service.WithBackend(cfg.Ledger.Backend),
		service.WithLocation(checker.Location()),
	)

	limiter := newMarkLimiter(cfg.RateLimit, backend, log, reg)

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpapi.NewRouter(httpapi.Options{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       prometheus.DefaultGatherer,
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, handler.New(svc, log, jwttoken.NewMiddlewareAdapter(jwt), handler.WithMarkLimiter(limiter.RateLimit)))

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting attendance server",
			"addr", cfg.Server.Addr,
			"env", cfg.Server.Environment,
			"ledger", cfg.Ledger.Backend,
			"site", cfg.Site.Name,
			"window_start", cfg.Site.WindowStart,
			"window_end", cfg.Site.WindowEnd,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	for _, w := range backend.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// newMarkLimiter shares the window through Redis when the ledger already
// uses it, otherwise keeps it in process.
func newMarkLimiter(cfg config.RateLimitConfig, backend *ledgerBackend, log *slog.Logger, reg prometheus.Registerer) *ratelimit.Middleware {
	var store ratelimit.BucketStore
	if backend.redis != nil {
		store = bucket.NewRedisBucketStore(backend.redis)
	} else {
		mem := bucket.NewInMemoryBucketStore()
		backend.workers = append(backend.workers, mem)
		store = mem
	}
	return ratelimit.New(store, cfg.PerWindow, cfg.Window, log,
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)))
}

func newChecker(site config.Site) (*eligibility.Checker, error) {
	start, err := eligibility.ParseTimeOfDay(site.WindowStart)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	end, err := eligibility.ParseTimeOfDay(site.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	loc, err := site.Location()
	if err != nil {
		return nil, fmt.Errorf("site timezone: %w", err)
	}
	return eligibility.NewChecker(
		eligibility.Window{Start: start, End: end},
		eligibility.Geofence{Latitude: site.Latitude, Longitude: site.Longitude, Radius: site.Radius},
		loc,
	), nil
}
