// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"

	"github.com/brokiem/plex-discord-rpc/internal/events"
)

func TestHubBroadcastsStatusEvents(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	defer bus.Close()

	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	deadline := time.After(2 * time.Second)
	for hub.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	bus.PublishStatus(events.StatusEvent{Status: "Playing: Episode 3", PresenceLive: true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var msg struct {
		Type string `json:"type"`
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageTypeStatus {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Data.Status != "Playing: Episode 3" {
		t.Errorf("status = %q", msg.Data.Status)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop on cancel")
	}
}

func TestHubDropsSlowClientInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	defer bus.Close()

	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	// Register a client directly with a full send buffer and no pump.
	stuck := &Client{hub: hub, send: make(chan Message)}
	hub.register <- stuck

	deadline := time.After(2 * time.Second)
	for hub.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	bus.PublishStatus(events.StatusEvent{Status: "No active session"})

	deadline = time.After(2 * time.Second)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("slow client was not dropped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
