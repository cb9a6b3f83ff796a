// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/plex-discord-rpc/config.yaml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Plex: PlexConfig{
			Product:           "Plex Discord RPC",
			Version:           "1.0.0",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 2,
		},
		Discord: DiscordConfig{
			AppID: "1464540148707496009",
		},
		Monitor: MonitorConfig{
			Interval: 3 * time.Second,
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    3658,
			Timeout: 30 * time.Second,
		},
		State: StateConfig{
			Path: defaultStatePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Security: SecurityConfig{
			StateSecret: "",
		},
	}
}

// defaultStatePath places the state file under the user config dir,
// falling back to the working directory when none is resolvable.
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "state.json"
	}
	return dir + "/plex-discord-rpc/state.json"
}

// Load loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"plex_product":     "plex.product",
		"plex_version":     "plex.version",
		"plex_timeout":     "plex.timeout",
		"plex_rps":         "plex.requests_per_second",
		"discord_app_id":   "discord.app_id",
		"monitor_interval": "monitor.interval",
		"http_host":        "server.host",
		"http_port":        "server.port",
		"http_timeout":     "server.timeout",
		"state_path":       "state.path",
		"state_secret":     "security.state_secret",
		"log_level":        "logging.level",
		"log_format":       "logging.format",
	}
	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
