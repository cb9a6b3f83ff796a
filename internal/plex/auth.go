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
)

// PinInfo describes a pending PIN (device-code) login.
type PinInfo struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	AuthURL string `json:"auth_url"`
}

// Auth is the credential pair obtained once a PIN is claimed.
type Auth struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// StartPIN begins the plex.tv PIN login flow. The returned AuthURL is
// opened by the user in a browser; CheckPIN polls for completion.
func (c *Client) StartPIN(ctx context.Context) (*PinInfo, error) {
	var pin struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	}

	query := url.Values{"strong": []string{"true"}}
	if err := c.doJSON(ctx, http.MethodPost, c.tvBaseURL, "/pins", "", query, &pin); err != nil {
		return nil, fmt.Errorf("start pin flow: %w", err)
	}

	authURL := fmt.Sprintf(
		"https://app.plex.tv/auth#?clientID=%s&code=%s&context[device][product]=%s",
		url.QueryEscape(c.clientID), url.QueryEscape(pin.Code), url.QueryEscape(c.product),
	)
	return &PinInfo{ID: pin.ID, Code: pin.Code, AuthURL: authURL}, nil
}

// CheckPIN polls a pending PIN. It returns (nil, nil) while the PIN is
// unclaimed, and the resolved credentials once the user approves it.
func (c *Client) CheckPIN(ctx context.Context, pinID int64) (*Auth, error) {
	var pin struct {
		AuthToken *string `json:"authToken"`
	}

	path := fmt.Sprintf("/pins/%d", pinID)
	if err := c.doJSON(ctx, http.MethodGet, c.tvBaseURL, path, "", nil, &pin); err != nil {
		return nil, fmt.Errorf("check pin: %w", err)
	}
	if pin.AuthToken == nil || *pin.AuthToken == "" {
		return nil, nil
	}

	username, err := c.username(ctx, *pin.AuthToken)
	if err != nil {
		return nil, err
	}
	return &Auth{Token: *pin.AuthToken, Username: username}, nil
}

func (c *Client) username(ctx context.Context, token string) (string, error) {
	var user struct {
		Username string `json:"username"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.tvBaseURL, "/user", token, nil, &user); err != nil {
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return user.Username, nil
}
