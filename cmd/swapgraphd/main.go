// Command swapgraphd runs the clearing network's HTTP API: it wires the
// state store, signer, event log, and domain services behind the chi
// router, then serves until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"swapgraph/internal/config"
	"swapgraph/internal/eventlog"
	"swapgraph/internal/httpapi"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/idempotency"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
	"swapgraph/observability/logging"
	telemetry "swapgraph/observability/otel"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to swapgraphd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPGRAPH_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var rotation *logging.RotationConfig
	if strings.TrimSpace(cfg.Logging.Path) != "" {
		rotation = &logging.RotationConfig{
			Path:       cfg.Logging.Path,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	slogger := logging.SetupWithRotation(cfg.Observability.ServiceName, env, rotation)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Observability.ServiceName,
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    true,
		Headers:     otlpHeaders,
		Metrics:     cfg.Observability.Metrics,
		Traces:      cfg.Observability.Tracing,
	})
	if err != nil {
		slogger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	signer, err := signing.NewSigner(cfg.Signing.KeyID, cfg.Signing.Secret)
	if err != nil {
		slogger.Error("configure signer", "error", err)
		os.Exit(1)
	}

	var persister store.Persister
	if strings.TrimSpace(cfg.Storage.SnapshotPath) != "" {
		persister, err = store.NewBboltPersister(cfg.Storage.SnapshotPath)
		if err != nil {
			slogger.Error("open snapshot store", "error", err)
			os.Exit(1)
		}
	}
	st, err := store.New(persister)
	if err != nil {
		slogger.Error("open state store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var durableIdem idempotency.DurablePersistence
	if strings.TrimSpace(cfg.Storage.IdempotencyPath) != "" {
		durableIdem, err = idempotency.NewLevelDBPersistence(cfg.Storage.IdempotencyPath)
		if err != nil {
			slogger.Error("open idempotency store", "error", err)
			os.Exit(1)
		}
	}
	idemRegistry, err := idempotency.New(st, durableIdem)
	if err != nil {
		slogger.Error("replay idempotency store", "error", err)
		os.Exit(1)
	}
	defer idemRegistry.Close()

	events := eventlog.New(st, signer)
	api := httpapi.NewAPI(st, events, idemRegistry, signer, time.Now)

	rateLimits := make(map[string]middleware.RateLimit)
	for _, entry := range cfg.RateLimits {
		if entry.ID == "" {
			continue
		}
		rateLimits[entry.ID] = middleware.RateLimit{RatePerSecond: entry.RatePerSecond, Burst: entry.Burst}
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, slogger)

	jwtAuth := middleware.NewJWTAuthenticator(middleware.JWTConfig{
		Enabled:    cfg.Auth.Enabled,
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
		SigningKey: cfg.Auth.JWTSigningKey,
		ClockSkew:  cfg.Auth.ClockSkew,
	}, slogger)

	router := httpapi.NewRouter(api, httpapi.Dependencies{
		CORS: middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimiter:   middleware.NewRateLimiter(rateLimits),
		Observability: obs,
		JWT:           jwtAuth,
	})

	var handler http.Handler = router
	if cfg.Observability.Tracing {
		handler = otelhttp.NewHandler(router, cfg.Observability.ServiceName)
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		slogger.Error("listen", "error", err)
		os.Exit(1)
	}
	go func() {
		slogger.Info(fmt.Sprintf("listening on http://%s", listener.Addr()))
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slogger.Error("serve", "error", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("graceful shutdown failed", "error", err)
	}
}
