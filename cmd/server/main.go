// Package main is the entry point for the toggld server.
//
// The bootstrap sequence is:
//  1. Load configuration from environment variables.
//  2. Connect to PostgreSQL via pgxpool and apply migrations.
//  3. Start the remote-configuration provider's refresh loop.
//  4. Build the section adapter and resolution service.
//  5. Start the HTTP server and wait for SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/toggld/toggld/internal/config"
	"github.com/toggld/toggld/internal/core"
	"github.com/toggld/toggld/internal/logging"
	"github.com/toggld/toggld/internal/metrics"
	"github.com/toggld/toggld/internal/middleware"
	"github.com/toggld/toggld/internal/remote"
	"github.com/toggld/toggld/internal/repository"
	"github.com/toggld/toggld/internal/server"
	"github.com/toggld/toggld/internal/service"
	"github.com/toggld/toggld/internal/tracing"
)

const (
	shutdownTimeout       = 10 * time.Second
	httpReadHeaderTimeout = 5 * time.Second
	httpReadTimeout       = 30 * time.Second
	httpIdleTimeout       = 2 * time.Minute
	poolStatsInterval     = 5 * time.Second
)

// buildChannel is the distribution channel this binary was built for. It is
// baked in at link time:
//
//	go build -ldflags "-X main.buildChannel=beta" ./cmd/server
//
// and never read from configuration at runtime.
var buildChannel = "release"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	channel := core.ParseBuildChannel(buildChannel)
	log.Info("build channel", "channel", channel)

	shutdownTracer, err := tracing.Init(context.Background(), string(channel))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		return err
	}

	m := metrics.New()

	provider := remote.New(cfg.RemoteConfigURL,
		remote.WithLogger(logging.Component(log, "remote")),
		remote.WithOnRefresh(m.RecordRemoteRefresh),
	)
	provider.Start(ctx, cfg.RemoteRefreshInterval)

	sections := core.NewSectionAdapter(provider, provider, cfg.Locale)

	store := repository.NewPostgresStore(pool)
	svc, err := service.New(store, sections, channel,
		service.WithLogger(log),
		service.WithResolutionMetrics(m.RecordResolution, m.RecordToggle, m.RecordOptionWrite),
	)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	serverOpts := []server.Option{
		server.WithMetricsHandler(m.Handler()),
		server.WithMaxJSONBodySize(cfg.MaxJSONBodySize),
	}
	if cfg.AuthTokenHash != "" {
		rateLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit)
		defer rateLimiter.Stop()

		serverOpts = append(serverOpts, server.WithAuthMiddleware(middleware.BearerAuth(
			&staticTokenValidator{hash: cfg.AuthTokenHash},
			middleware.WithOnAuthFailure(func() { m.AuthFailuresTotal.Inc() }),
			middleware.WithRateLimiter(rateLimiter),
		)))
	} else {
		log.Warn("AUTH_TOKEN_HASH is not set; mutating endpoints are unauthenticated")
	}

	apiHandler := server.NewHTTPHandler(svc, serverOpts...)
	httpHandler := middleware.RequestLogging(log)(m.InstrumentHTTP(apiHandler))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(httpHandler, "toggld-http"),
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	// Periodically update DB pool metrics.
	go func() {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat := pool.Stat()
				m.SetDBPoolStats(metrics.DBPoolStats{
					Acquired: float64(stat.AcquiredConns()),
					Idle:     float64(stat.IdleConns()),
					Total:    float64(stat.TotalConns()),
				})
			}
		}
	}()

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen HTTP %s: %w", cfg.HTTPAddr, err)
	}
	defer httpListener.Close()

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	log.Info("server started", "http_addr", cfg.HTTPAddr, "channel", channel)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveErrCh:
	}
	stop()

	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		if serveErr != nil {
			return serveErr
		}
		return fmt.Errorf("shutdown HTTP: %w", err)
	}

	return serveErr
}

// staticTokenValidator accepts the single bearer token whose bcrypt hash is
// configured via AUTH_TOKEN_HASH.
type staticTokenValidator struct {
	hash string
}

func (v *staticTokenValidator) ValidateToken(_ context.Context, token string) error {
	if v == nil || v.hash == "" {
		return errors.New("no token configured")
	}
	if !middleware.TokenMatchesHash(v.hash, token) {
		return errors.New("invalid token")
	}
	return nil
}
