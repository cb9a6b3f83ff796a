// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/session"
	"github.com/brokiem/plex-discord-rpc/internal/strategy"
)

type fakeFetcher struct {
	session *models.PlaybackSession
	err     error
	calls   int
}

func (f *fakeFetcher) CurrentSession(context.Context, models.PlexServer, string, string) (*models.PlaybackSession, error) {
	f.calls++
	return f.session, f.err
}

type fakePresence struct {
	published  []*models.PlaybackSession
	attempts   int
	clears     int
	publishErr error
	connected  bool
}

func (f *fakePresence) Publish(s *models.PlaybackSession) error {
	f.attempts++
	if f.publishErr != nil {
		f.connected = false
		return f.publishErr
	}
	f.connected = true
	f.published = append(f.published, s)
	return nil
}

func (f *fakePresence) Clear() { f.clears++ }

func (f *fakePresence) Connected() bool { return f.connected }

type harness struct {
	engine   *Engine
	fetcher  *fakeFetcher
	presence *fakePresence
	clock    time.Time
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func newHarness(opener strategy.Opener) *harness {
	h := &harness{
		fetcher:  &fakeFetcher{},
		presence: &fakePresence{},
		clock:    time.Unix(1700000000, 0),
	}
	if opener == nil {
		opener = func(context.Context, models.PlexServer, string) (strategy.PushChannel, error) {
			return nil, errors.New("no push channel in test")
		}
	}
	tracker := session.NewTrackerWithClock(func() time.Time { return h.clock })
	h.engine = New(h.fetcher, strategy.NewSelector(opener), tracker, h.presence)
	return h
}

func owned() *models.PlexServer {
	return &models.PlexServer{Name: "mine", Address: "192.168.1.5", Port: 32400, Owned: true}
}

func episode(state models.PlayerState, offsetMS int64) *models.PlaybackSession {
	return &models.PlaybackSession{
		Title: "Episode 3", Index: 3, ParentIndex: 1,
		GrandparentTitle: "Some Show",
		Kind:             models.MediaEpisode,
		State:            state,
		DurationMS:       1800000,
		ViewOffsetMS:     offsetMS,
	}
}

func TestTickNotAuthenticated(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	status, err := h.engine.Tick(context.Background(), owned(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusNotAuthenticated {
		t.Errorf("status = %q", status)
	}
	if h.fetcher.calls != 0 {
		t.Error("unauthenticated tick must not fetch")
	}
	if h.presence.clears != 1 {
		t.Errorf("clears = %d, want presence cleared once", h.presence.clears)
	}
}

func TestTickNoServerSelected(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	status, err := h.engine.Tick(context.Background(), nil, "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusNoServer {
		t.Errorf("status = %q", status)
	}
}

func TestFreshPlaybackPublishes(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)

	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q", status)
	}
	if len(h.presence.published) != 1 {
		t.Fatalf("published %d activities, want 1", len(h.presence.published))
	}
}

func TestConsistentPlaybackDoesNotRepublish(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err != nil {
		t.Fatal(err)
	}

	h.advance(time.Second)
	h.fetcher.session = episode(models.StatePlaying, 1000)
	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q", status)
	}
	if len(h.presence.published) != 1 {
		t.Errorf("published %d activities, want no republish", len(h.presence.published))
	}
}

func TestFetchErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err != nil {
		t.Fatal(err)
	}

	h.fetcher.session = nil
	h.fetcher.err = errors.New("server unreachable")
	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err == nil {
		t.Fatal("fetch error must surface")
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q, want the previous status preserved", status)
	}
	if h.presence.clears != 0 {
		t.Error("fetch error must not clear presence")
	}

	// Recovery on the next successful tick.
	h.fetcher.err = nil
	h.fetcher.session = episode(models.StatePaused, 5000)
	status, err = h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Paused: Episode 3" {
		t.Errorf("status = %q", status)
	}
}

func TestIdlePlayerStateTreatedAsNoSession(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StateIdle, 0)

	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusNoSession {
		t.Errorf("status = %q", status)
	}
	if len(h.presence.published) != 0 {
		t.Error("idle player state must never be published")
	}
}

func TestIdleDebounceThenClear(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err != nil {
		t.Fatal(err)
	}

	h.fetcher.session = nil
	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusIdleDebounce {
		t.Errorf("status = %q, want debounce notice", status)
	}
	if h.presence.clears != 0 {
		t.Error("presence cleared during debounce")
	}

	h.advance(4 * time.Second)
	status, err = h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusNoSession {
		t.Errorf("status = %q", status)
	}
	if h.presence.clears != 1 {
		t.Errorf("clears = %d, want exactly one", h.presence.clears)
	}
}

func TestPublishRetriedWhileDisconnected(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)
	h.presence.publishErr = errors.New("discord gone")

	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err == nil {
		t.Fatal("publish failure must surface")
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q, want the session status alongside the error", status)
	}

	// Still down on the next tick: the unchanged session is retried, not
	// parked until the next title change.
	h.advance(3 * time.Second)
	h.fetcher.session = episode(models.StatePlaying, 3000)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err == nil {
		t.Fatal("publish failure must keep surfacing while disconnected")
	}
	if h.presence.attempts != 2 {
		t.Fatalf("attempts = %d, want a retry on every tick", h.presence.attempts)
	}

	// Discord comes back: the same session is published without waiting
	// for a playback change.
	h.presence.publishErr = nil
	h.advance(3 * time.Second)
	h.fetcher.session = episode(models.StatePlaying, 6000)
	status, err = h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q", status)
	}
	if len(h.presence.published) != 1 {
		t.Fatalf("published = %d, want the recovery publish", len(h.presence.published))
	}
	if got := h.presence.published[0].ViewOffsetMS; got != 6000 {
		t.Errorf("published offset = %d, want the fresh observation", got)
	}

	// Once the card is up, unchanged ticks go back to being quiet.
	h.advance(3 * time.Second)
	h.fetcher.session = episode(models.StatePlaying, 9000)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err != nil {
		t.Fatal(err)
	}
	if h.presence.attempts != 3 {
		t.Errorf("attempts = %d, want no publish while connected and unchanged", h.presence.attempts)
	}
}

func TestSkipFetchReturnsCachedStatus(t *testing.T) {
	t.Parallel()

	ch := make(chan struct{}, 10)
	opener := func(context.Context, models.PlexServer, string) (strategy.PushChannel, error) {
		return quietChannel{ch}, nil
	}
	h := newHarness(opener)
	h.fetcher.session = episode(models.StatePlaying, 0)

	shared := &models.PlexServer{Name: "friend", Address: "198.51.100.4", Port: 32400}
	status, err := h.engine.Tick(context.Background(), shared, "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Fatalf("seed status = %q", status)
	}
	fetches := h.fetcher.calls

	// Quiet push channel: cached status, no fetch.
	status, err = h.engine.Tick(context.Background(), shared, "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Errorf("cached status = %q", status)
	}
	if h.fetcher.calls != fetches {
		t.Error("skip-fetch tick must not hit the server")
	}

	// A buffered signal triggers a refresh.
	ch <- struct{}{}
	h.advance(time.Second)
	h.fetcher.session = episode(models.StatePaused, 1000)
	status, err = h.engine.Tick(context.Background(), shared, "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Paused: Episode 3" {
		t.Errorf("status = %q", status)
	}
}

type quietChannel struct {
	ch chan struct{}
}

func (q quietChannel) Signals() <-chan struct{} { return q.ch }
func (q quietChannel) Close()                   {}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.fetcher.session = episode(models.StatePlaying, 0)
	if _, err := h.engine.Tick(context.Background(), owned(), "tok", "alice"); err != nil {
		t.Fatal(err)
	}

	h.engine.Reset()
	if h.presence.clears != 1 {
		t.Errorf("clears = %d", h.presence.clears)
	}
	if h.engine.Status() != StatusNoSession {
		t.Errorf("status = %q", h.engine.Status())
	}

	// The next observation is a cold start and publishes again.
	status, err := h.engine.Tick(context.Background(), owned(), "tok", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if status != "Playing: Episode 3" {
		t.Errorf("status = %q", status)
	}
	if len(h.presence.published) != 2 {
		t.Errorf("published = %d, want republish after reset", len(h.presence.published))
	}
}
