// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// Servers lists the servers reachable by the account, preferring local
// connections when a resource advertises several.
func (c *Client) Servers(ctx context.Context, token string) ([]models.PlexServer, error) {
	type connection struct {
		Address string `json:"address"`
		Port    int    `json:"port"`
		Local   bool   `json:"local"`
	}
	type resource struct {
		Name        string       `json:"name"`
		Owned       bool         `json:"owned"`
		Connections []connection `json:"connections"`
	}

	var resources []resource
	query := url.Values{
		"includeHttps": []string{"1"},
		"includeRelay": []string{"1"},
	}
	if err := c.doJSON(ctx, http.MethodGet, c.tvBaseURL, "/resources", token, query, &resources); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	servers := make([]models.PlexServer, 0, len(resources))
	for _, r := range resources {
		if len(r.Connections) == 0 {
			continue
		}
		conn := r.Connections[0]
		for _, cand := range r.Connections {
			if cand.Local {
				conn = cand
				break
			}
		}
		servers = append(servers, models.PlexServer{
			Name:    r.Name,
			Address: conn.Address,
			Port:    conn.Port,
			Owned:   r.Owned,
		})
	}
	return servers, nil
}
