package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/project-o/assist/db"
	"github.com/project-o/assist/internal/api"
	"github.com/project-o/assist/internal/config"
	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/orchestrator"
	"github.com/project-o/assist/internal/provider"
	"github.com/project-o/assist/internal/unsplash"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	a := &App{Config: cfg}
	a.Logger = provideLogger(cfg)

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				a.Logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be wired before the model provider initializes so
	// the span processor catches generation spans.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, a.Logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	p, err := provider.New(ctx, cfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating model provider: %w", err)
	}
	a.Provider = p

	images, err := unsplash.NewClient(unsplash.Config{
		AccessKey: cfg.UnsplashAccessKey,
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating unsplash client: %w", err)
	}
	a.Unsplash = images

	store, err := exchange.NewStore(pool, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating exchange store: %w", err)
	}
	a.Store = store

	// Detached persistence outlives request contexts but must stop on
	// shutdown, so it hangs off the base context, not a request.
	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))
	a.bgCancel = bgCancel

	orch, err := orchestrator.New(orchestrator.Config{
		Model:  p,
		Images: images,
		Store:  store,
		Logger: a.Logger,
		BGCtx:  bgCtx,
		WG:     &a.wg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	server, err := api.NewServer(api.ServerConfig{
		Logger:        a.Logger,
		Turns:         orch,
		Store:         store,
		Pool:          pool,
		CORSOrigins:   cfg.CORSOrigins,
		IsDev:         cfg.Environment != "production",
		TrustProxy:    cfg.TrustProxy,
		RatePerMinute: cfg.RateLimitPerMinute,
		RateBurst:     cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating api server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideLogger builds the process logger from configuration.
func provideLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}

// parseLogLevel maps the configured level name to a slog.Level,
// defaulting to info for unknown values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// provideOtelShutdown wires OTLP trace export into Genkit's tracer
// provider. Returns a no-op cleanup when no endpoint is configured.
//
// The exporter targets a local collector or agent over OTLP HTTP; the
// collector handles authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function runs
	// exactly once during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector doesn't need TLS
	)
	if err != nil {
		logger.Warn("creating otlp exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection
// pool with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
