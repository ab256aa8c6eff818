package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/adapter/httpserver"
	"github.com/pscheid92/streambus/internal/adapter/redis"
	"github.com/pscheid92/streambus/internal/adapter/websocket"
	"github.com/pscheid92/streambus/internal/app"
	"github.com/pscheid92/streambus/internal/broadcast"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/platform/config"
	"github.com/pscheid92/streambus/internal/platform/logging"
	"github.com/pscheid92/streambus/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRelay(ctx context.Context, cfg *config.Config, b *bus.Bus, clock clockwork.Clock) (*redis.Client, *redis.Relay) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := redis.NewClient(connectCtx, cfg.RedisURL, clock)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client, redis.NewRelay(client, cfg.RelayChannel, b)
}

func runGracefulShutdown(srv *httpserver.Server, b *bus.Bus, stopWorkers context.CancelFunc, workers *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		b.Close()
		stopWorkers()
		workers.Wait()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "bus_address", cfg.BusAddress, "build", version.Get())

	b := bus.New(cfg.BusCapacity)

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var (
		workers      sync.WaitGroup
		relay        app.Relay // stays a nil interface when the relay is disabled
		healthChecks []httpserver.HealthCheck
	)

	if cfg.RedisURL != "" {
		client, r := setupRelay(ctx, cfg, b, clock)
		defer func() { _ = client.Close() }()

		relay = r
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "relay", Check: client.Ping})

		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := r.Run(ctx); err != nil {
				slog.Error("Relay stopped", "error", err)
			}
		}()
	}

	limits := broadcast.NewLimits(broadcast.LimitsConfig{
		MaxConnections: cfg.MaxConnections,
		MaxPerIP:       cfg.MaxConnectionsPerIP,
		Rate:           cfg.ConnectionRate,
		Burst:          cfg.ConnectionBurst,
	}, clock)
	listener := broadcast.NewListener(b, cfg.BusAddress, limits, clock)
	healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "bus_listener", Check: listener.Check})

	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := listener.Listen(ctx); err != nil {
			slog.Error("Bus listener failed", "error", err)
			os.Exit(1)
		}
	}()

	heartbeat := app.NewHeartbeat(b, cfg.HeartbeatInterval, clock)
	workers.Add(1)
	go func() {
		defer workers.Done()
		heartbeat.Run(ctx)
	}()

	stream := websocket.NewStream(b, clock, websocket.NewCheckOrigin(websocket.OriginPolicy{
		AppURL:      cfg.AppURL,
		Overlays:    cfg.OverlayOrigins,
		Development: cfg.IsDevelopment(),
	}))
	srv := httpserver.NewServer(cfg, app.NewService(b, relay), stream, healthChecks, clock)

	done := runGracefulShutdown(srv, b, stopWorkers, &workers)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Application stopped")
}
