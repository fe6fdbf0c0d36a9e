package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/resolvekit/resolveguard/config"
	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
	"github.com/resolvekit/resolveguard/internal/dispatch"
	"github.com/resolvekit/resolveguard/internal/handler"
	"github.com/resolvekit/resolveguard/internal/httpserver"
	"github.com/resolvekit/resolveguard/internal/metrics"
	"github.com/resolvekit/resolveguard/internal/resolution"
	"github.com/resolvekit/resolveguard/internal/resolver"
	"github.com/resolvekit/resolveguard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1000, logger.WithComponent(log, "metrics"))
	collector.Start(ctx)

	downstreamTimeout, err := time.ParseDuration(cfg.Downstream.Timeout)
	if err != nil {
		log.Error("Invalid downstream timeout", slog.Any("err", err))
		os.Exit(1)
	}

	downstream, err := resolver.NewHTTP(cfg.Downstream.URL, downstreamTimeout, logger.WithComponent(log, "resolver"))
	if err != nil {
		log.Error("Failed to create downstream resolver", slog.Any("err", err))
		os.Exit(1)
	}

	wrapped, table, err := buildPipeline(cfg, downstream.Resolve, collector, log)
	if err != nil {
		log.Error("Failed to build resolution pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	resolveHandler := handler.NewResolveHandler(log, wrapped, collector)
	mux := setupRouter(resolveHandler, collector, table)

	srv, err := httpserver.New(cfg.Server.Address, mux, serverTimeouts(cfg.Server))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildPipeline wires the configured dispatch policies into a keyed breaker
// table in front of the downstream resolver. The dispatch key of a batch is
// the "source" carried in its resolution environment; keys prefixed "static:"
// are side-effect-free lookups and bypass breaking.
func buildPipeline(
	cfg *config.Config,
	resolve resolution.ResolveFunc,
	collector *metrics.Collector,
	log *slog.Logger,
) (resolution.ResolveFunc, *dispatch.Table, error) {
	hook := func(name string, from, to circuitbreaker.State) {
		log.Warn("Breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))

		collector.Emit(metrics.MetricEvent{
			Type:      metrics.EventStateChanged,
			Timestamp: time.Now(),
			Breaker:   name,
			ToState:   to.String(),
		})
	}

	entries := make(map[any]dispatch.Entry, len(cfg.Breaker.Dispatch))
	for key, policy := range cfg.Breaker.Dispatch {
		opts, err := cfg.Options(policy)
		if err != nil {
			return nil, nil, err
		}
		entries[key] = dispatch.Entry{Name: policy.Name, Options: opts}
	}

	keyFn := func(env resolution.Env, batch []resolution.Item) any {
		return env["source"]
	}

	opts := dispatch.Options{
		ThrowOnOpen: cfg.Breaker.ThrowOnOpen,
		IsPure:      isStaticKey,
	}

	return dispatch.WrapByKey(resolve, keyFn, entries, opts, hook)
}

func isStaticKey(item resolution.Item) bool {
	key, ok := item.(string)
	return ok && strings.HasPrefix(key, "static:")
}

func serverTimeouts(cfg config.ServerConfig) httpserver.Timeouts {
	var t httpserver.Timeouts

	// Validated at config load; a parse failure here leaves the default.
	if cfg.ReadTimeout != "" {
		t.Read, _ = time.ParseDuration(cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != "" {
		t.Write, _ = time.ParseDuration(cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != "" {
		t.Idle, _ = time.ParseDuration(cfg.IdleTimeout)
	}

	return t
}
