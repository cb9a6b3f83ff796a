// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package strategy decides, per tick, whether to poll the server for
// session state or rely on the push notification channel.
package strategy

import (
	"context"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/metrics"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// Decision is the per-tick fetch verdict.
type Decision int

const (
	// FetchNow means the session state must be fetched this tick.
	FetchNow Decision = iota
	// SkipFetch means the push channel is healthy and quiet; the
	// cached state is still authoritative.
	SkipFetch
)

func (d Decision) String() string {
	if d == SkipFetch {
		return "skip-fetch"
	}
	return "fetch-now"
}

// PushChannel yields opaque change signals from the server. A closed
// signal channel means the subscription is dead.
type PushChannel interface {
	Signals() <-chan struct{}
	Close()
}

// Opener establishes a push subscription against a server.
type Opener func(ctx context.Context, server models.PlexServer, token string) (PushChannel, error)

// Selector owns the push subscription and applies the poll-versus-push
// policy. Owned servers are always polled directly; shared servers are
// polled only when the push channel signals a change, to stay gentle on
// infrastructure the user does not control.
type Selector struct {
	open Opener
	sub  PushChannel
}

// NewSelector creates a selector using the given subscription opener.
func NewSelector(open Opener) *Selector {
	return &Selector{open: open}
}

// Subscribed reports whether a push subscription is currently held.
func (s *Selector) Subscribed() bool {
	return s.sub != nil
}

// Reset closes and drops the push subscription.
func (s *Selector) Reset() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
}

// Decide returns the fetch verdict for this tick. tracking reports
// whether the engine currently holds a session; a cold start always
// fetches so the first observation is never delayed.
func (s *Selector) Decide(ctx context.Context, server models.PlexServer, token string, tracking bool) Decision {
	decision := s.decide(ctx, server, token)
	if !tracking {
		return FetchNow
	}
	return decision
}

func (s *Selector) decide(ctx context.Context, server models.PlexServer, token string) Decision {
	if server.Owned {
		return FetchNow
	}

	if s.sub == nil {
		sub, err := s.open(ctx, server, token)
		if err != nil {
			// Fall back to polling this tick; the next tick retries.
			logging.Warn().Err(err).Str("server", server.Name).Msg("push subscription open failed, polling")
			return FetchNow
		}
		s.sub = sub
		return FetchNow
	}

	signaled := false
	for {
		select {
		case _, ok := <-s.sub.Signals():
			if !ok {
				// Dead channel: refresh now and reopen next tick.
				logging.Info().Str("server", server.Name).Msg("push subscription died, reopening next tick")
				metrics.PushChannelReopens.Inc()
				s.sub.Close()
				s.sub = nil
				return FetchNow
			}
			signaled = true
		default:
			if signaled {
				return FetchNow
			}
			return SkipFetch
		}
	}
}
