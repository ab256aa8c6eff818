package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	// OverlayOrigins are extra browser origins allowed on /ws, space separated
	OverlayOrigins []string `env:"OVERLAY_ORIGINS"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	BusAddress  string `env:"BUS_ADDRESS" default:"127.0.0.1:4444"`
	BusCapacity int    `env:"BUS_CAPACITY" default:"1024"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"` // 0 disables

	RedisURL     string `env:"REDIS_URL"` // empty disables the relay
	RelayChannel string `env:"RELAY_CHANNEL" default:"streambus:messages"`

	MaxConnections      int     `env:"MAX_CONNECTIONS" default:"1000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"20"`

	MessageRate  float64 `env:"MESSAGE_RATE" default:"20"` // POST /api/messages per second and IP
	MessageBurst int     `env:"MESSAGE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether localhost conveniences (such as websocket origins) are enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.BusAddress); err != nil {
		return fmt.Errorf("BUS_ADDRESS must be host:port: %w", err)
	}
	if cfg.BusCapacity <= 0 {
		return errors.New("BUS_CAPACITY must be positive")
	}
	if cfg.HeartbeatInterval < 0 {
		return errors.New("HEARTBEAT_INTERVAL must not be negative")
	}
	if cfg.RedisURL != "" && cfg.RelayChannel == "" {
		return errors.New("RELAY_CHANNEL is required when REDIS_URL is set")
	}
	if cfg.MaxConnections <= 0 || cfg.MaxConnectionsPerIP <= 0 {
		return errors.New("MAX_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectionRate <= 0 || cfg.ConnectionBurst <= 0 {
		return errors.New("CONNECTION_RATE and CONNECTION_BURST must be positive")
	}
	if cfg.MessageRate <= 0 || cfg.MessageBurst <= 0 {
		return errors.New("MESSAGE_RATE and MESSAGE_BURST must be positive")
	}
	if !slices.Contains([]string{"text", "json"}, cfg.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return nil
}
