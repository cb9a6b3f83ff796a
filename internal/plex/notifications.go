// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package plex

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/metrics"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second

	// signalBuffer bounds the pending-signal queue. One buffered signal
	// is enough to trigger a refresh; extras are dropped.
	signalBuffer = 10
)

// Subscription is a live websocket subscription to a server's
// notification endpoint. It yields opaque "something changed" signals;
// the payload is never decoded beyond the container type.
//
// The Signals channel is closed when the underlying connection dies, so
// a closed channel doubles as the liveness signal for the strategy
// selector.
type Subscription struct {
	conn    *websocket.Conn
	signals chan struct{}

	closeOnce sync.Once
}

// Signals returns the signal channel. A receive means at least one
// notification arrived since the last drain; a closed channel means the
// subscription is dead and must be reopened.
func (s *Subscription) Signals() <-chan struct{} {
	return s.signals
}

// Close tears down the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
	})
}

// OpenNotifications connects to the server's websocket notification
// endpoint and starts the reader goroutine. The returned subscription
// buffers signals until the next tick drains them.
func (c *Client) OpenNotifications(ctx context.Context, server models.PlexServer, token string) (*Subscription, error) {
	wsURL := url.URL{
		Scheme:   "ws",
		Host:     fmt.Sprintf("%s:%d", server.Address, server.Port),
		Path:     "/:/websockets/notifications",
		RawQuery: url.Values{"X-Plex-Token": []string{token}}.Encode(),
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("notification socket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("notification socket dial: %w", err)
	}

	sub := &Subscription{
		conn:    conn,
		signals: make(chan struct{}, signalBuffer),
	}
	go sub.listen()

	logging.Info().Str("server", server.Name).Msg("plex notification channel open")
	return sub, nil
}

// listen reads notifications until the connection dies, converting each
// message into a buffered signal. The signal channel is closed on exit.
func (s *Subscription) listen() {
	defer close(s.signals)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logging.Debug().Err(err).Msg("plex notification socket: set read deadline failed")
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("plex notification socket closed")
			} else {
				logging.Warn().Err(err).Msg("plex notification socket read error")
			}
			s.Close()
			return
		}

		var wrapper models.PlexNotificationWrapper
		if err := json.Unmarshal(message, &wrapper); err != nil {
			// Not a notification envelope; still worth a refresh.
			logging.Debug().Err(err).Msg("undecodable plex notification, signaling anyway")
		} else {
			logging.Debug().Str("type", wrapper.NotificationContainer.Type).Msg("plex notification received")
		}

		metrics.PushSignalsTotal.Inc()
		select {
		case s.signals <- struct{}{}:
		default:
			// Queue full: a pending signal already guarantees a refresh.
		}
	}
}
