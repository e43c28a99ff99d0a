package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vnmchuo/letter-gateway/config"
	"github.com/vnmchuo/letter-gateway/internal/metrics"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
	"github.com/vnmchuo/letter-gateway/internal/provider/yandexgpt"
	"github.com/vnmchuo/letter-gateway/internal/proxy"
	"github.com/vnmchuo/letter-gateway/internal/telemetry"
	"github.com/vnmchuo/letter-gateway/internal/usage"
	"github.com/vnmchuo/letter-gateway/pkg/ratelimit"
)

func runServe(parent context.Context, cfg *config.Config, log zerolog.Logger, opts modelconfig.Options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Init telemetry
	tracer, shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Options{
		ServiceName:    serviceName,
		ServiceVersion: version,
		ExporterType:   cfg.OTELExporterType,
		Endpoint:       cfg.OTELExporterEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	m := metrics.New()

	// 2. Resolve the model config once; the service does not start without it.
	holder := modelconfig.NewHolder(nil)
	refresher := modelconfig.NewRefresher(newResolver(cfg, log), opts, holder, cfg.ConfigRefreshInterval,
		modelconfig.WithRefreshLogger(log),
		modelconfig.WithTracer(tracer),
		modelconfig.WithObserver(m),
	)
	if err := refresher.Refresh(ctx); err != nil {
		return err
	}
	go refresher.Run(ctx)

	// 3. Usage store (optional)
	var store usage.Store = usage.NopStore{}
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return err
		}
		pgStore := usage.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			return err
		}
		store = pgStore
		log.Info().Msg("PostgreSQL connected")
	}

	// 4. Rate limiter (optional)
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		limiter = ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitTPM)
		log.Info().Msg("Redis connected")
	}

	// 5. Completion client behind a circuit breaker
	client := yandexgpt.New(
		yandexgpt.WithHTTPClient(&http.Client{}),
		yandexgpt.WithCompletionURL(cfg.CompletionURL),
	)
	completer := proxy.NewBreaker("yandexgpt", client)

	handler := proxy.NewHandler(proxy.Deps{
		Configs:   holder,
		Completer: completer,
		Usage:     store,
		Limiter:   limiter,
		Tracer:    tracer,
		Metrics:   m,
		Logger:    log,
		Options: provider.Options{
			MaxTokens: provider.DefaultOptions().MaxTokens,
			Timeout:   cfg.UpstreamTimeout,
		},
	})
	router := proxy.NewRouter(handler, proxy.RouterConfig{
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           m.Handler(),
		UsageEnabled:      cfg.PostgresDSN != "",
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	// 6. Serve until signalled
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("letter gateway starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
