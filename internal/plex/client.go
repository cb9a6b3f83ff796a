// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package plex implements the remote state source: the plex.tv account
// API (PIN auth, server discovery) and the per-server session API, plus
// the websocket notification channel used as the push signal source on
// shared servers.
package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
)

const plexTVBaseURL = "https://plex.tv/api/v2"

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// ErrUnauthorized is returned when plex.tv or the server rejects the
// token. The caller treats it like any other fetch failure: surface and
// retry next tick.
var ErrUnauthorized = errors.New("plex: unauthorized")

// APIError is a non-2xx response from a Plex endpoint.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plex: %s returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Options configures the Plex client identity headers and throttling.
type Options struct {
	Product           string
	Version           string
	ClientID          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is the HTTP client for plex.tv and Plex Media Server endpoints.
// Credentials are passed per call; the client itself holds only device
// identity and transport state.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter

	product  string
	version  string
	clientID string

	// tvBaseURL points at plex.tv; tests override it.
	tvBaseURL string

	// sleep is swapped out in tests to avoid real retry delays.
	sleep func(time.Duration)
}

// NewClient creates a Plex client with the given identity and throttle.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 2),
		product:   opts.Product,
		version:   opts.Version,
		clientID:  opts.ClientID,
		tvBaseURL: plexTVBaseURL,
		sleep:     time.Sleep,
	}
}

// doJSON executes a request against baseURL+path with the standard Plex
// identity headers, decoding the JSON response into result when non-nil.
// Server errors and transport errors are retried with linear backoff;
// 401/403 map to ErrUnauthorized, other non-2xx to *APIError.
func (c *Client) doJSON(ctx context.Context, method, baseURL, path, token string, query url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.sendWithRetry(ctx, method, baseURL+path, token, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Endpoint: path}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// sendWithRetry retries transport failures and 5xx responses. The final
// response is returned even when still 5xx so status mapping happens in
// one place.
func (c *Client) sendWithRetry(ctx context.Context, method, reqURL, token string, query url.Values) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req, token)
		if len(query) > 0 {
			req.URL.RawQuery = query.Encode()
		}

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			if attempt == maxRetries {
				return resp, nil
			}
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Endpoint: req.URL.Path}
		} else {
			if attempt == maxRetries {
				return nil, fmt.Errorf("plex request: %w", err)
			}
			lastErr = err
		}

		logging.Debug().Err(lastErr).Int("attempt", attempt).Str("url", reqURL).Msg("plex request retrying")
		c.sleep(retryDelay * time.Duration(attempt))
	}

	return nil, fmt.Errorf("plex request: %w", lastErr)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", c.product)
	req.Header.Set("X-Plex-Version", c.version)
	req.Header.Set("Accept", "application/json")
}
