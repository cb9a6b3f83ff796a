// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package engine runs the per-tick synchronization pass: decide whether
// to fetch, classify the observation, and publish or clear the Discord
// presence. All engine state mutates inside Tick, serialized by a lock.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/metrics"
	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/session"
	"github.com/brokiem/plex-discord-rpc/internal/strategy"
)

// Status strings returned by Tick for display.
const (
	StatusNotAuthenticated = "Not authenticated"
	StatusNoServer         = "No server selected"
	StatusNoSession        = "No active session"
	StatusIdleDebounce     = "Waiting for idle debounce..."
)

// Fetcher is the remote state source, satisfied by *plex.BreakerClient.
type Fetcher interface {
	CurrentSession(ctx context.Context, server models.PlexServer, token, username string) (*models.PlaybackSession, error)
}

// Presence is the publish side, satisfied by *presence.Manager.
// Connected reports whether the last publish actually landed, so a tick
// with an unchanged session can retry a publish that previously failed.
type Presence interface {
	Publish(session *models.PlaybackSession) error
	Clear()
	Connected() bool
}

// Engine coordinates the tracker, strategy selector, and presence
// manager. Ticks are serialized by an internal lock; Reset may run
// concurrently and wins over any in-flight tick via an epoch check.
type Engine struct {
	mu sync.Mutex

	fetcher  Fetcher
	selector *strategy.Selector
	tracker  *session.Tracker
	presence Presence

	epoch      atomic.Uint64
	lastStatus string
}

// New creates an engine around the given collaborators.
func New(fetcher Fetcher, selector *strategy.Selector, tracker *session.Tracker, presence Presence) *Engine {
	return &Engine{
		fetcher:    fetcher,
		selector:   selector,
		tracker:    tracker,
		presence:   presence,
		lastStatus: StatusNoSession,
	}
}

// Status returns the last status string without running a tick.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStatus
}

// Reset discards all tracked state and connections. It is called on
// logout, disconnect, and server change. The epoch bump makes any tick
// already past its fetch discard its results instead of resurrecting
// stale state.
func (e *Engine) Reset() {
	e.epoch.Add(1)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Reset()
	e.selector.Reset()
	e.presence.Clear()
	e.lastStatus = StatusNoSession
	logging.Debug().Msg("engine state reset")
}

// Tick runs one synchronization pass and returns the human-readable
// status. An empty token means not authenticated; a nil target means
// no server is selected. Both are steady states, not errors.
func (e *Engine) Tick(ctx context.Context, target *models.PlexServer, token, username string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics.TicksTotal.Inc()

	if token == "" {
		return e.shortCircuit(StatusNotAuthenticated), nil
	}
	if target == nil {
		return e.shortCircuit(StatusNoServer), nil
	}

	epoch := e.epoch.Load()

	decision := e.selector.Decide(ctx, *target, token, e.tracker.Tracking())
	if decision == strategy.SkipFetch {
		// Push channel healthy and quiet: cached status still holds.
		metrics.RecordFetchSkipped()
		return e.lastStatus, nil
	}

	observed, err := e.fetcher.CurrentSession(ctx, *target, token, username)
	if e.epoch.Load() != epoch {
		// A reset ran while the fetch was in flight; its effects win.
		logging.Debug().Msg("discarding stale tick result after reset")
		return e.lastStatus, nil
	}
	if err != nil {
		// No partial overwrite: state stays as-is and the next tick
		// simply retries.
		metrics.RecordFetch(false)
		return e.lastStatus, fmt.Errorf("fetch session: %w", err)
	}
	metrics.RecordFetch(true)

	// An idle player is the same as no session for presence purposes.
	if observed != nil && observed.State == models.StateIdle {
		observed = nil
	}

	return e.apply(observed)
}

// shortCircuit clears any lingering state for the steady no-work states.
func (e *Engine) shortCircuit(status string) string {
	if e.tracker.Tracking() || e.lastStatus != status {
		e.tracker.Reset()
		e.selector.Reset()
		e.presence.Clear()
	}
	e.lastStatus = status
	return status
}

// apply feeds the observation through the tracker and performs the
// resulting presence side effect.
func (e *Engine) apply(observed *models.PlaybackSession) (string, error) {
	switch outcome := e.tracker.Record(observed); outcome {
	case session.OutcomeChanged:
		e.lastStatus = statusFor(observed)
		if err := e.presence.Publish(observed); err != nil {
			return e.lastStatus, fmt.Errorf("publish presence: %w", err)
		}
		logging.Info().Str("status", e.lastStatus).Msg("presence updated")
		return e.lastStatus, nil

	case session.OutcomeUnchanged:
		e.lastStatus = statusFor(e.tracker.Last())
		if !e.presence.Connected() {
			// An earlier publish never landed; keep retrying with the
			// fresh observation until the card is back up.
			if err := e.presence.Publish(observed); err != nil {
				return e.lastStatus, fmt.Errorf("publish presence: %w", err)
			}
			logging.Info().Str("status", e.lastStatus).Msg("presence restored")
		}
		return e.lastStatus, nil

	case session.OutcomeDebouncing:
		return StatusIdleDebounce, nil

	case session.OutcomeBecameIdle:
		e.presence.Clear()
		e.lastStatus = StatusNoSession
		logging.Info().Msg("session ended, presence cleared")
		return e.lastStatus, nil

	default:
		e.lastStatus = StatusNoSession
		return e.lastStatus, nil
	}
}

func statusFor(s *models.PlaybackSession) string {
	switch s.State {
	case models.StatePlaying:
		return "Playing: " + s.Title
	case models.StatePaused:
		return "Paused: " + s.Title
	case models.StateBuffering:
		return "Buffering: " + s.Title
	default:
		return StatusNoSession
	}
}
