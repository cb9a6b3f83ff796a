// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package config provides layered configuration (defaults, YAML file,
// environment variables) and the persisted user state store.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the static daemon configuration. User-mutable state (auth
// token, selected server) lives in the state store, not here.
type Config struct {
	Plex     PlexConfig     `koanf:"plex"`
	Discord  DiscordConfig  `koanf:"discord"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Server   ServerConfig   `koanf:"server"`
	State    StateConfig    `koanf:"state"`
	Logging  LoggingConfig  `koanf:"logging"`
	Security SecurityConfig `koanf:"security"`
}

// PlexConfig configures the Plex HTTP and websocket clients.
type PlexConfig struct {
	// Product and Version are sent as X-Plex-Product / X-Plex-Version
	// headers on every plex.tv and server request.
	Product string `koanf:"product" validate:"required"`
	Version string `koanf:"version" validate:"required"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles outgoing requests to a single server.
	// Shared servers are rate-limit sensitive; polling them directly is
	// already avoided by the push strategy, this is a second guard.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
}

// DiscordConfig configures the Discord IPC presence sink.
type DiscordConfig struct {
	// AppID is the Discord application (client) ID used in the IPC
	// handshake. The default ships with the daemon; users can register
	// their own application to customize the presence name.
	AppID string `koanf:"app_id" validate:"required,numeric"`
}

// MonitorConfig configures the tick loop.
type MonitorConfig struct {
	// Interval is the tick cadence while actively monitoring.
	Interval time.Duration `koanf:"interval" validate:"gte=1s"`
}

// ServerConfig configures the local HTTP status API.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// StateConfig locates the persisted user state file.
type StateConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// LoggingConfig mirrors logging.Config for koanf loading.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// SecurityConfig holds secrets for at-rest protection of credentials.
type SecurityConfig struct {
	// StateSecret encrypts the Plex auth token inside the state file
	// (AES-256-GCM, HKDF-derived key). When empty, a random secret is
	// generated next to the state file on first run.
	StateSecret string `koanf:"state_secret"`
}

// Validate checks the configuration using struct tags. Returned errors
// name the offending field path.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
