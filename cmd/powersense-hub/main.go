// Command powersense-hub bridges the relay power monitor with dashboard and
// app clients over websockets, persists telemetry, and serves the control
// API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/powersense/backend/internal/api"
	"github.com/powersense/backend/internal/config"
	"github.com/powersense/backend/internal/device"
	"github.com/powersense/backend/internal/hub"
	"github.com/powersense/backend/internal/metrics"
	"github.com/powersense/backend/internal/mqtt"
	"github.com/powersense/backend/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	dbURL := flag.String("db", "", "PostgreSQL URL (overrides config; empty = in-memory store)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config; empty = bridge disabled)")
	probe := flag.Duration("probe", 0, "Liveness probe interval (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyOverrides(&cfg, *httpAddr, *dbURL, *broker, *probe, *logLevel)

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func applyOverrides(cfg *config.Config, httpAddr, dbURL, broker string, probe time.Duration, logLevel string) {
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if probe > 0 {
		cfg.Liveness.Interval = probe.String()
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), nil
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var store storage.Store
	if cfg.Database.URL == "" {
		log.Warn("no database configured, readings and activity are kept in memory")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.Open(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("init storage: %w", err)
		}
		store = pg
		log.Info("connected to database")
	}
	defer store.Close()

	// Optional MQTT bridge. A dead broker is not fatal: the hub serves its
	// clients either way.
	var pub mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		if err != nil {
			log.Error("mqtt bridge unavailable, continuing without it", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			pub = real
			defer real.Close()
			log.Info("mqtt bridge connected", "broker", cfg.MQTT.Broker)
		}
	}

	m := metrics.New()
	h := hub.New(device.NewStatus(), store, pub, m, log)
	go h.Run(ctx, cfg.ProbeInterval())

	srv := api.New(cfg.HTTP.Addr, h, store, m.Handler(), log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("powersense hub listening", "addr", cfg.HTTP.Addr, "probe", cfg.ProbeInterval())

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
