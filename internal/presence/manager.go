// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package presence owns the lifecycle of the Discord RPC link: connect
// with bounded retries, publish activity updates, force a reconnect
// when a publish hits a dead link, and clear on shutdown.
package presence

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/discord"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/metrics"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond

	// connectCooldown throttles fresh connection attempts while Discord
	// is not running. It does not apply to the forced reconnect after a
	// publish failure.
	connectCooldown = 2 * time.Second
)

// ErrCooldown is returned when a connect is requested before the
// cooldown since the previous failed attempt has elapsed.
var ErrCooldown = errors.New("presence: connect attempt within cooldown")

// Sink is the activity endpoint, satisfied by *discord.Conn.
type Sink interface {
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
	Close() error
}

// Manager is the Disconnected/Connected state machine in front of the
// Discord IPC socket. It is not safe for concurrent use; the engine
// serializes all calls behind its tick lock.
type Manager struct {
	dial func() (Sink, error)

	conn        Sink
	lastAttempt time.Time

	// live mirrors conn != nil for readers outside the engine lock.
	live atomic.Bool

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewManager creates a manager that dials the local Discord client for
// the given application ID.
func NewManager(appID string) *Manager {
	return &Manager{
		dial: func() (Sink, error) {
			return discord.Dial(appID)
		},
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Connected reports whether a live link is held. Safe to call from
// outside the engine lock.
func (m *Manager) Connected() bool {
	return m.live.Load()
}

// connect establishes a fresh link with bounded linear backoff. When
// force is false, attempts within the cooldown window are refused so a
// stopped Discord client is not hammered every tick.
func (m *Manager) connect(force bool) error {
	if m.conn != nil {
		return nil
	}
	if !force && m.now().Sub(m.lastAttempt) < connectCooldown {
		return ErrCooldown
	}
	m.lastAttempt = m.now()

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := m.dial()
		if err == nil {
			m.conn = conn
			m.live.Store(true)
			metrics.SetPresenceConnected(true)
			logging.Info().Int("attempt", attempt).Msg("presence link established")
			return nil
		}
		lastErr = err
		logging.Debug().Err(err).Int("attempt", attempt).Msg("presence connect failed")
		if attempt < connectAttempts {
			m.sleep(connectBackoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("presence connect: %w", lastErr)
}

// drop tears the link down without clearing the published activity.
func (m *Manager) drop() {
	if m.conn == nil {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
	m.live.Store(false)
	metrics.SetPresenceConnected(false)
}

// Publish maps the session to an activity and sends it. A publish that
// fails on an established link gets exactly one forced reconnect and
// retry; a second failure is surfaced and retried no further until the
// next change.
func (m *Manager) Publish(session *models.PlaybackSession) error {
	activity := BuildActivity(session, m.now())

	if err := m.connect(false); err != nil {
		metrics.RecordPublish(false)
		return err
	}

	if err := m.conn.SetActivity(activity); err != nil {
		logging.Warn().Err(err).Msg("publish failed, forcing reconnect")
		m.drop()
		metrics.PresenceReconnects.Inc()

		if cerr := m.connect(true); cerr != nil {
			metrics.RecordPublish(false)
			return fmt.Errorf("reconnect after publish failure: %w", cerr)
		}
		if rerr := m.conn.SetActivity(activity); rerr != nil {
			m.drop()
			metrics.RecordPublish(false)
			return fmt.Errorf("publish after reconnect: %w", rerr)
		}
	}

	metrics.RecordPublish(true)
	logging.Debug().Str("details", activity.Details).Msg("presence published")
	return nil
}

// Clear removes the presence card. Clearing is best-effort cleanup and
// never reports an error; a dead link is simply dropped.
func (m *Manager) Clear() {
	if m.conn == nil {
		if err := m.connect(false); err != nil {
			return
		}
	}
	if err := m.conn.ClearActivity(); err != nil {
		logging.Debug().Err(err).Msg("presence clear failed")
		m.drop()
		return
	}
	metrics.PresenceClearsTotal.Inc()
}

// Close clears the presence and releases the link.
func (m *Manager) Close() {
	m.Clear()
	m.drop()
}
