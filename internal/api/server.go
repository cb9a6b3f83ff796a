// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/config"
	"github.com/brokiem/plex-discord-rpc/internal/logging"
)

const shutdownGrace = 5 * time.Second

// Server runs the local control API. It implements suture.Service.
type Server struct {
	addr    string
	timeout time.Duration
	handler http.Handler
}

// NewServer creates the HTTP server around the routing tree.
func NewServer(cfg config.ServerConfig, handler *Handler) *Server {
	return &Server{
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		timeout: cfg.Timeout,
		handler: NewRouter(handler),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Serve listens until the context is canceled, then shuts down
// gracefully within the shutdown grace period.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.timeout,
		// No WriteTimeout: the /ws endpoint holds connections open.
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("control api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("control api shutdown incomplete, closing")
		_ = srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control api: %w", err)
	}
	return ctx.Err()
}
