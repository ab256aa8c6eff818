// Package config loads service configuration from environment variables (and an optional .env file).
package config
