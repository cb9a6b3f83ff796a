// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package session tracks the last observed playback session and
// classifies each new observation as changed, unchanged, or idle.
package session

import (
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

const (
	// idleGrace absorbs transient no-session gaps, such as the pause
	// between episodes, before the presence is cleared.
	idleGrace = 3 * time.Second

	// driftThresholdMS separates a deliberate seek from ordinary
	// polling jitter when the session is otherwise identical.
	driftThresholdMS = 3000
)

// Outcome classifies one observation against the tracked state.
type Outcome int

const (
	// OutcomeUnchanged means the same session is still running on its
	// expected timeline; nothing needs republishing.
	OutcomeUnchanged Outcome = iota
	// OutcomeChanged means a new, structurally different, or seeked
	// session was observed and must be published.
	OutcomeChanged
	// OutcomeDebouncing means no session was observed but the idle
	// grace period is still running; the old presence stays up.
	OutcomeDebouncing
	// OutcomeBecameIdle is emitted exactly once when the grace period
	// elapses; the presence must be cleared.
	OutcomeBecameIdle
	// OutcomeIdle means nothing was tracked and nothing was observed.
	OutcomeIdle
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeChanged:
		return "changed"
	case OutcomeDebouncing:
		return "debouncing"
	case OutcomeBecameIdle:
		return "became-idle"
	default:
		return "idle"
	}
}

// Tracker holds the last published session and the idle debounce timer.
// Not safe for concurrent use; the engine serializes access.
type Tracker struct {
	last            *models.PlaybackSession
	lastPublishedAt time.Time
	idleSince       time.Time

	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// NewTrackerWithClock creates a tracker with an injected clock for
// deterministic debounce and drift timing in tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

// Last returns the tracked session, nil when idle.
func (t *Tracker) Last() *models.PlaybackSession {
	return t.last
}

// Tracking reports whether a session is currently held.
func (t *Tracker) Tracking() bool {
	return t.last != nil
}

// Reset drops all tracked state, including a running idle timer.
func (t *Tracker) Reset() {
	t.last = nil
	t.lastPublishedAt = time.Time{}
	t.idleSince = time.Time{}
}

// Record classifies a fresh observation. A nil session while tracking
// starts (or continues) the idle grace timer rather than clearing
// immediately; a structurally new session or a seek larger than the
// drift threshold is reported as changed and overwrites the tracked
// state.
func (t *Tracker) Record(observed *models.PlaybackSession) Outcome {
	now := t.now()

	if observed == nil {
		if t.last == nil {
			return OutcomeIdle
		}
		if t.idleSince.IsZero() {
			t.idleSince = now
			return OutcomeDebouncing
		}
		if now.Sub(t.idleSince) < idleGrace {
			return OutcomeDebouncing
		}
		logging.Debug().Str("title", t.last.Title).Msg("idle grace elapsed, clearing session")
		t.Reset()
		return OutcomeBecameIdle
	}

	t.idleSince = time.Time{}

	if t.last != nil && t.last.SameIdentity(observed) {
		if observed.State == models.StatePlaying && t.seeked(observed, now) {
			t.commit(observed, now)
			return OutcomeChanged
		}
		return OutcomeUnchanged
	}

	t.commit(observed, now)
	return OutcomeChanged
}

// seeked compares the observed elapsed position against where the
// timeline should be given wall-clock progress since the last publish.
func (t *Tracker) seeked(observed *models.PlaybackSession, now time.Time) bool {
	expected := t.last.ViewOffsetMS + now.Sub(t.lastPublishedAt).Milliseconds()
	drift := observed.ViewOffsetMS - expected
	if drift < 0 {
		drift = -drift
	}
	if drift > driftThresholdMS {
		logging.Debug().Int64("drift_ms", drift).Msg("seek detected")
		return true
	}
	return false
}

func (t *Tracker) commit(observed *models.PlaybackSession, now time.Time) {
	t.last = observed
	t.lastPublishedAt = now
}
