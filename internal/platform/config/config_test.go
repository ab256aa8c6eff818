package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "http://localhost:8080", cfg.AppURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "127.0.0.1:4444", cfg.BusAddress)
	assert.Equal(t, 1024, cfg.BusCapacity)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "streambus:messages", cfg.RelayChannel)
	assert.Equal(t, 1000, cfg.MaxConnections)
	assert.Equal(t, 50, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 10.0, cfg.ConnectionRate)
	assert.Equal(t, 20, cfg.ConnectionBurst)
	assert.Equal(t, 20.0, cfg.MessageRate)
	assert.Equal(t, 40, cfg.MessageBurst)
	assert.Empty(t, cfg.OverlayOrigins)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("BUS_ADDRESS", "0.0.0.0:5555")
	t.Setenv("BUS_CAPACITY", "64")
	t.Setenv("HEARTBEAT_INTERVAL", "0s")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("OVERLAY_ORIGINS", "https://cdn.example.net https://overlay.example.org")
	t.Setenv("MESSAGE_RATE", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "0.0.0.0:5555", cfg.BusAddress)
	assert.Equal(t, 64, cfg.BusCapacity)
	assert.Zero(t, cfg.HeartbeatInterval)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://cdn.example.net", "https://overlay.example.org"}, cfg.OverlayOrigins)
	assert.Equal(t, 5.0, cfg.MessageRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"address without port", "BUS_ADDRESS", "localhost", "BUS_ADDRESS must be host:port"},
		{"zero capacity", "BUS_CAPACITY", "0", "BUS_CAPACITY must be positive"},
		{"negative heartbeat", "HEARTBEAT_INTERVAL", "-1s", "HEARTBEAT_INTERVAL must not be negative"},
		{"zero max connections", "MAX_CONNECTIONS", "0", "MAX_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be positive"},
		{"zero rate", "CONNECTION_RATE", "0", "CONNECTION_RATE and CONNECTION_BURST must be positive"},
		{"zero message burst", "MESSAGE_BURST", "0", "MESSAGE_RATE and MESSAGE_BURST must be positive"},
		{"bad log format", "LOG_FORMAT", "xml", "LOG_FORMAT must be text or json"},
		{"not a number", "BUS_CAPACITY", "lots", "failed to load environment variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RelayRequiresChannel(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RELAY_CHANNEL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_CHANNEL is required")
}
