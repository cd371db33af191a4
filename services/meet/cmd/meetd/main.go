package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetpoint/pkg/bus"
	"meetpoint/pkg/cache"
	"meetpoint/pkg/db"
	"meetpoint/pkg/realtime"
	"meetpoint/pkg/telemetry"
	"meetpoint/services/meet"
	"meetpoint/services/meet/internal/config"
)

// The NATS bus is the hub's cross-process transport.
var _ realtime.Broker = (*bus.Bus)(nil)

func main() {
	if err := run("meetd"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Redis is the mandatory fast path: without it there is no live
	// session state.
	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", cfg.RedisAddr, err)
	}

	store := &meet.Store{Cache: cacheClient}

	// Postgres is best-effort: sessions survive restarts only when it is
	// up, but the service must come up either way.
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Printf("WARN durable store unreachable, running cache-only: %v", err)
		} else {
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			store.DB = pool
			orm, err := db.OpenORM(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}
			store.ORM = orm
		}
	} else {
		logger.Printf("INFO no MEET_DATABASE_URL set, running cache-only")
	}

	// The hub works in local-only mode when NATS is absent; events then
	// reach sockets on this process only.
	hub := realtime.NewHub(logger)
	defer hub.Close()
	store.Hub = hub

	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			logger.Printf("WARN broker unreachable, fan-out is single-process: %v", err)
		} else {
			defer b.Close()
			if err := hub.Bind(b, cfg.EventsSubject); err != nil {
				logger.Printf("WARN broker bind failed, fan-out is single-process: %v", err)
			}
		}
	} else {
		logger.Printf("INFO no MEET_NATS_URL set, fan-out is single-process")
	}

	api, err := meet.New(store, logger, meet.CoordinatorConfig{SessionTTL: cfg.SessionTTL})
	if err != nil {
		return fmt.Errorf("init meet api: %w", err)
	}
	routes, err := api.Routes()
	if err != nil {
		return fmt.Errorf("init routes: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler(store))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(store *meet.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Cache.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if store.DB != nil {
			if err := db.Ping(r.Context(), store.DB); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
