// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package monitor is the driver loop: it runs the engine on a fixed
// cadence, owns the user's credentials and server selection, and
// publishes status snapshots to the event bus.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/config"
	"github.com/brokiem/plex-discord-rpc/internal/engine"
	"github.com/brokiem/plex-discord-rpc/internal/events"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/plex"
)

// ErrNoPendingLogin is returned when PollLogin runs without StartLogin.
var ErrNoPendingLogin = errors.New("monitor: no login in progress")

// ErrUnknownServer is returned when a server selection names a server
// the account cannot reach.
var ErrUnknownServer = errors.New("monitor: unknown server")

// PlexAPI is the plex.tv surface the monitor needs for auth and
// discovery; *plex.Client satisfies it.
type PlexAPI interface {
	StartPIN(ctx context.Context) (*plex.PinInfo, error)
	CheckPIN(ctx context.Context, pinID int64) (*plex.Auth, error)
	Servers(ctx context.Context, token string) ([]models.PlexServer, error)
}

// PresenceStatus exposes link liveness for snapshots.
type PresenceStatus interface {
	Connected() bool
}

// Service drives the engine. It implements suture.Service.
type Service struct {
	interval time.Duration
	api      PlexAPI
	engine   *engine.Engine
	presence PresenceStatus
	bus      *events.Bus
	store    *config.StateStore

	mu    sync.RWMutex
	state *config.UserState
	pin   *plex.PinInfo

	force chan struct{}
}

// NewService loads persisted credentials and prepares the driver loop.
func NewService(interval time.Duration, api PlexAPI, eng *engine.Engine, pres PresenceStatus, bus *events.Bus, store *config.StateStore) (*Service, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load persisted state: %w", err)
	}
	return &Service{
		interval: interval,
		api:      api,
		engine:   eng,
		presence: pres,
		bus:      bus,
		store:    store,
		state:    state,
		force:    make(chan struct{}, 1),
	}, nil
}

// ClientID returns the persistent device identifier.
func (s *Service) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ClientID
}

// Serve runs the tick loop until the context is canceled. A force
// signal (login, server selection, disconnect) triggers an immediate
// tick between cadence ticks.
func (s *Service) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("monitor loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		case <-s.force:
			s.tick(ctx)
		}
	}
}

// ForceTick schedules an immediate tick without blocking. A pending
// forced tick already covers any further requests.
func (s *Service) ForceTick() {
	select {
	case s.force <- struct{}{}:
	default:
	}
}

func (s *Service) tick(ctx context.Context) {
	s.mu.RLock()
	token := s.state.AuthToken
	username := s.state.Username
	server := s.state.Server
	s.mu.RUnlock()

	status, err := s.engine.Tick(ctx, server, token, username)
	if err != nil {
		logging.Warn().Err(err).Msg("tick failed")
	}

	event := events.StatusEvent{
		Status:         status,
		PresenceLive:   s.presence.Connected(),
		ObservedUnixMS: time.Now().UnixMilli(),
	}
	if server != nil {
		event.Server = server.Name
	}
	if err != nil {
		event.TickErr = err.Error()
	}
	s.bus.PublishStatus(event)
}

// StartLogin begins the plex.tv PIN flow and returns the URL the user
// must open to approve the device.
func (s *Service) StartLogin(ctx context.Context) (*plex.PinInfo, error) {
	pin, err := s.api.StartPIN(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pin = pin
	s.mu.Unlock()

	logging.Info().Int64("pin_id", pin.ID).Msg("login flow started")
	return pin, nil
}

// PollLogin checks whether the pending PIN has been approved. It
// returns false while the user has not acted yet, and true once
// credentials are stored, after which the next tick picks them up.
func (s *Service) PollLogin(ctx context.Context) (bool, error) {
	s.mu.RLock()
	pin := s.pin
	s.mu.RUnlock()
	if pin == nil {
		return false, ErrNoPendingLogin
	}

	auth, err := s.api.CheckPIN(ctx, pin.ID)
	if err != nil {
		return false, err
	}
	if auth == nil {
		return false, nil
	}

	s.mu.Lock()
	s.state.AuthToken = auth.Token
	s.state.Username = auth.Username
	s.pin = nil
	err = s.store.Save(s.state)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("persist credentials: %w", err)
	}

	logging.Info().Str("username", auth.Username).Msg("login completed")
	s.ForceTick()
	return true, nil
}

// Servers lists the servers reachable with the stored credentials.
func (s *Service) Servers(ctx context.Context) ([]models.PlexServer, error) {
	s.mu.RLock()
	token := s.state.AuthToken
	s.mu.RUnlock()
	if token == "" {
		return nil, plex.ErrUnauthorized
	}
	return s.api.Servers(ctx, token)
}

// SelectServer picks the monitoring target by name. Changing the
// target resets all engine state so nothing from the old server leaks.
func (s *Service) SelectServer(ctx context.Context, name string) (*models.PlexServer, error) {
	servers, err := s.Servers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range servers {
		if servers[i].Name != name {
			continue
		}

		s.mu.Lock()
		s.state.Server = &servers[i]
		err := s.store.Save(s.state)
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("persist server selection: %w", err)
		}

		s.engine.Reset()
		s.ForceTick()
		logging.Info().Str("server", name).Msg("monitoring target selected")
		return &servers[i], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownServer, name)
}

// Disconnect drops the credentials and server selection, clears the
// presence, and persists the emptied state.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	s.state.AuthToken = ""
	s.state.Username = ""
	s.state.Server = nil
	s.pin = nil
	err := s.store.Save(s.state)
	s.mu.Unlock()

	s.engine.Reset()
	s.ForceTick()
	logging.Info().Msg("disconnected")
	if err != nil {
		return fmt.Errorf("persist disconnect: %w", err)
	}
	return nil
}

// Snapshot reports the current sync state for the status endpoint.
func (s *Service) Snapshot() events.StatusEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event := events.StatusEvent{
		Status:         s.engine.Status(),
		PresenceLive:   s.presence.Connected(),
		ObservedUnixMS: time.Now().UnixMilli(),
	}
	if s.state.Server != nil {
		event.Server = s.state.Server.Name
	}
	return event
}

// Authenticated reports whether credentials are stored.
func (s *Service) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated()
}

// Username returns the logged-in account name, empty when logged out.
func (s *Service) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Username
}
