// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package websocket pushes live status updates to browser clients of
// the local control API.
package websocket

import (
	"context"
	"sync"

	"github.com/brokiem/plex-discord-rpc/internal/events"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
)

// Message types sent to clients.
const (
	MessageTypeStatus = "status"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
)

// Message is the envelope for all client-bound frames.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub relays status events from the bus to all connected clients. It
// implements suture.Service; a restart re-subscribes to the bus.
type Hub struct {
	bus *events.Bus

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub over the given status bus.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		bus:        bus,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the hub loop until the context is canceled.
func (h *Hub) Serve(ctx context.Context) error {
	sub, err := h.bus.SubscribeStatus(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info().Int("total_clients", total).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info().Int("total_clients", total).Msg("websocket client disconnected")

		case event, ok := <-sub:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcast(Message{Type: MessageTypeStatus, Data: event})
		}
	}
}

// broadcast delivers a message to every client, dropping clients whose
// send buffers are full rather than blocking the hub.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
			logging.Warn().Msg("websocket client too slow, dropped")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
