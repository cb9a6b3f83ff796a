// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package api serves the local control surface: status, the PIN login
// flow, server selection, and a websocket with live status pushes.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/brokiem/plex-discord-rpc/internal/events"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/monitor"
	"github.com/brokiem/plex-discord-rpc/internal/plex"
	"github.com/brokiem/plex-discord-rpc/internal/websocket"
)

// Controller is the monitor surface the handlers drive; satisfied by
// *monitor.Service.
type Controller interface {
	StartLogin(ctx context.Context) (*plex.PinInfo, error)
	PollLogin(ctx context.Context) (bool, error)
	Servers(ctx context.Context) ([]models.PlexServer, error)
	SelectServer(ctx context.Context, name string) (*models.PlexServer, error)
	Disconnect() error
	Snapshot() events.StatusEvent
	Authenticated() bool
	Username() string
}

// Handler holds the API dependencies.
type Handler struct {
	controller Controller
	hub        *websocket.Hub
}

// NewHandler creates the API handler set.
func NewHandler(controller Controller, hub *websocket.Hub) *Handler {
	return &Handler{controller: controller, hub: hub}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("encode api response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status returns the current sync snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.controller.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		events.StatusEvent
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username,omitempty"`
	}{
		StatusEvent:   snapshot,
		Authenticated: h.controller.Authenticated(),
		Username:      h.controller.Username(),
	})
}

// Login starts the plex.tv PIN flow and returns the approval URL.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	pin, err := h.controller.StartLogin(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, pin)
}

// LoginPoll reports whether the pending PIN has been approved.
func (h *Handler) LoginPoll(w http.ResponseWriter, r *http.Request) {
	done, err := h.controller.PollLogin(r.Context())
	switch {
	case errors.Is(err, monitor.ErrNoPendingLogin):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": done})
}

// Servers lists the servers reachable by the account.
func (h *Handler) Servers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.controller.Servers(r.Context())
	switch {
	case errors.Is(err, plex.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

// SelectServer picks the monitoring target.
func (h *Handler) SelectServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("server name required"))
		return
	}

	server, err := h.controller.SelectServer(r.Context(), req.Name)
	switch {
	case errors.Is(err, monitor.ErrUnknownServer):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, plex.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, server)
}

// Disconnect drops credentials and clears the presence.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// WebSocket attaches the client to the status hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, w, r)
}
