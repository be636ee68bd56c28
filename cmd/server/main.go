package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vatgate/internal/audit"
	"vatgate/internal/platform/config"
	"vatgate/internal/platform/httpserver"
	"vatgate/internal/platform/logger"
	"vatgate/internal/platform/metrics"
	platformredis "vatgate/internal/platform/redis"
	httptransport "vatgate/internal/transport/http"
	"vatgate/internal/vat/adapters"
	"vatgate/internal/vat/b2b"
	"vatgate/internal/vat/service"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal/vat packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry, primary, fallback, err := buildAdapters(cfg, redisClient)
	if err != nil {
		return err
	}

	store := audit.NewMemoryStore()
	auditor := audit.NewPublisher(store)

	validator, err := service.New(primary,
		service.WithFallback(fallback),
		service.WithRegistry(registry),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditor(auditor),
	)
	if err != nil {
		return err
	}

	engine, err := b2b.NewEngine(validator, b2b.WithMetrics(m))
	if err != nil {
		return err
	}

	handler := httptransport.New(validator, engine, auditor, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting vatgate",
		slog.String("addr", cfg.Addr),
		slog.String("adapter", primary.ID()),
		slog.String("fallback", fallbackID(fallback)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildAdapters registers the built-in adapters and selects the primary and
// fallback per configuration. When Redis is configured, the remote adapter
// is wrapped with the result cache.
func buildAdapters(cfg config.Server, redisClient *platformredis.Client) (*adapters.Registry, adapters.Adapter, adapters.Adapter, error) {
	policy := adapters.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.RetryDelay,
		Strategy:   adapters.BackoffStrategy(cfg.RetryBackoff),
	}

	// Timeout bounds connection establishment; RecvTimeout bounds the whole
	// exchange including the response body.
	httpClient := &http.Client{
		Timeout: cfg.RecvTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
		},
	}
	viesOpts := []adapters.VIESOption{
		adapters.WithRetryPolicy(policy),
		adapters.WithDoer(httpClient),
	}
	if cfg.VIESBaseURL != "" {
		viesOpts = append(viesOpts, adapters.WithBaseURL(cfg.VIESBaseURL))
	}

	var vies adapters.Adapter = adapters.NewVIES(viesOpts...)
	if redisClient != nil {
		vies = adapters.NewCached(vies, redisClient.Client, cfg.CacheTTL)
	}
	offline := adapters.NewOffline()

	registry := adapters.NewRegistry()
	for _, a := range []adapters.Adapter{vies, offline} {
		if err := registry.Register(a); err != nil {
			return nil, nil, nil, err
		}
	}

	primary, ok := registry.Get(cfg.Adapter)
	if !ok {
		return nil, nil, nil, errors.New("unknown primary adapter " + cfg.Adapter)
	}
	var fallback adapters.Adapter
	if cfg.FallbackAdapter != "" {
		fallback, ok = registry.Get(cfg.FallbackAdapter)
		if !ok {
			return nil, nil, nil, errors.New("unknown fallback adapter " + cfg.FallbackAdapter)
		}
	}
	return registry, primary, fallback, nil
}

func fallbackID(a adapters.Adapter) string {
	if a == nil {
		return "none"
	}
	return a.ID()
}
