// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package plex

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/metrics"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// BreakerClient wraps session fetches with a circuit breaker so a dead
// or flapping server is not hammered every tick. A rejected call counts
// as a fetch failure to the engine, which already retries next tick.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[*models.PlaybackSession]
}

// NewBreakerClient creates the breaker-protected client.
// The breaker opens after 5 consecutive failures and probes again after
// 30 seconds, which at the 3s tick cadence skips roughly ten doomed
// round trips per outage.
func NewBreakerClient(client *Client) *BreakerClient {
	name := "plex-sessions"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.PlaybackSession](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{client: client, cb: cb}
}

// CurrentSession fetches the user's active session with breaker
// protection.
func (b *BreakerClient) CurrentSession(ctx context.Context, server models.PlexServer, token, username string) (*models.PlaybackSession, error) {
	return b.cb.Execute(func() (*models.PlaybackSession, error) {
		return b.client.CurrentSession(ctx, server, token, username)
	})
}

// OpenNotifications passes through to the underlying client. The push
// channel has its own reopen-next-tick policy and needs no breaker.
func (b *BreakerClient) OpenNotifications(ctx context.Context, server models.PlexServer, token string) (*Subscription, error) {
	return b.client.OpenNotifications(ctx, server, token)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
