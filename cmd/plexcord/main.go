// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package main is the plex-discord-rpc daemon entry point.
//
// The daemon signs in to plex.tv with a PIN flow, watches the selected
// Plex server for the account's active playback session, and mirrors
// it onto Discord as a rich presence card. A small loopback HTTP API
// drives login, server selection, and live status.
//
// Startup order:
//
//  1. Configuration: koanf layers defaults, config.yaml, and env vars
//  2. Persisted state: client ID and encrypted Plex token
//  3. Engine: Plex client, strategy selector, tracker, presence manager
//  4. Supervision tree: monitor loop, websocket hub, HTTP API
//
// Shutdown is graceful on SIGINT/SIGTERM: the supervision tree stops
// its services, the presence card is cleared, and the Discord link is
// released.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/brokiem/plex-discord-rpc/internal/api"
	"github.com/brokiem/plex-discord-rpc/internal/config"
	"github.com/brokiem/plex-discord-rpc/internal/engine"
	"github.com/brokiem/plex-discord-rpc/internal/events"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/monitor"
	"github.com/brokiem/plex-discord-rpc/internal/plex"
	"github.com/brokiem/plex-discord-rpc/internal/presence"
	"github.com/brokiem/plex-discord-rpc/internal/session"
	"github.com/brokiem/plex-discord-rpc/internal/strategy"
	"github.com/brokiem/plex-discord-rpc/internal/supervisor"
	"github.com/brokiem/plex-discord-rpc/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("state_path", cfg.State.Path).
		Str("listen", cfg.Server.Host).
		Msg("starting plex-discord-rpc")

	secret := cfg.Security.StateSecret
	if secret == "" {
		secret, err = config.LoadOrCreateSecret(cfg.State.Path)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to prepare state secret")
		}
	}
	encryptor, err := config.NewTokenEncryptor(secret)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize token encryption")
	}
	store := config.NewStateStore(cfg.State.Path, encryptor)

	state, err := store.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load persisted state")
	}

	client := plex.NewClient(plex.Options{
		Product:           cfg.Plex.Product,
		Version:           cfg.Plex.Version,
		ClientID:          state.ClientID,
		Timeout:           cfg.Plex.Timeout,
		RequestsPerSecond: cfg.Plex.RequestsPerSecond,
	})
	fetcher := plex.NewBreakerClient(client)

	selector := strategy.NewSelector(func(ctx context.Context, server models.PlexServer, token string) (strategy.PushChannel, error) {
		return fetcher.OpenNotifications(ctx, server, token)
	})
	presenceManager := presence.NewManager(cfg.Discord.AppID)
	eng := engine.New(fetcher, selector, session.NewTracker(), presenceManager)

	bus := events.NewBus()
	defer bus.Close()

	svc, err := monitor.NewService(cfg.Monitor.Interval, client, eng, presenceManager, bus, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize monitor")
	}

	hub := websocket.NewHub(bus)
	server := api.NewServer(cfg.Server, api.NewHandler(svc, hub))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(svc)
	tree.AddSyncService(hub)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr()).Msg("supervision tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervision tree stopped")
	}

	// Leave Discord clean on the way out.
	presenceManager.Close()
	logging.Info().Msg("shutdown complete")
}
