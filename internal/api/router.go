// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi routing tree. The auth endpoints get a
// stricter rate limit than the rest; everything is loopback traffic,
// but a misbehaving dashboard tab should not be able to spin the PIN
// flow in a loop.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", handler.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))

		r.Get("/status", handler.Status)
		r.Get("/servers", handler.Servers)
		r.Post("/server", handler.SelectServer)
		r.Post("/disconnect", handler.Disconnect)

		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Post("/login", handler.Login)
			r.Get("/poll", handler.LoginPoll)
		})
	})

	return r
}
