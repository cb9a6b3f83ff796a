// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package plex

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// sessionMetadata is the subset of /status/sessions metadata the daemon
// cares about.
type sessionMetadata struct {
	Type             string `json:"type"`
	Title            string `json:"title"`
	Index            int    `json:"index"`
	ParentTitle      string `json:"parentTitle"`
	ParentIndex      int    `json:"parentIndex"`
	GrandparentTitle string `json:"grandparentTitle"`
	Duration         int64  `json:"duration"`
	ViewOffset       int64  `json:"viewOffset"`
	Thumb            string `json:"thumb"`
	GrandparentThumb string `json:"grandparentThumb"`
	Player           struct {
		State string `json:"state"`
	} `json:"Player"`
	User struct {
		Title string `json:"title"`
	} `json:"User"`
}

// CurrentSession fetches active sessions from the server and returns the
// one belonging to username, or nil when the user has no active session.
//
// When the user has several sessions, a playing one wins over buffering,
// which wins over paused.
func (c *Client) CurrentSession(ctx context.Context, server models.PlexServer, token, username string) (*models.PlaybackSession, error) {
	var resp struct {
		MediaContainer struct {
			Metadata []sessionMetadata `json:"Metadata"`
		} `json:"MediaContainer"`
	}

	if err := c.doJSON(ctx, http.MethodGet, server.BaseURL(), "/status/sessions", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}

	var mine []sessionMetadata
	for _, m := range resp.MediaContainer.Metadata {
		if m.User.Title == username {
			mine = append(mine, m)
		}
	}
	if len(mine) == 0 {
		return nil, nil
	}

	chosen := pickByState(mine, "playing")
	if chosen == nil {
		chosen = pickByState(mine, "buffering")
	}
	if chosen == nil {
		chosen = pickByState(mine, "paused")
	}
	if chosen == nil {
		return nil, nil
	}

	return toPlaybackSession(chosen, server, token), nil
}

func pickByState(sessions []sessionMetadata, state string) *sessionMetadata {
	for i := range sessions {
		if sessions[i].Player.State == state {
			return &sessions[i]
		}
	}
	return nil
}

func toPlaybackSession(m *sessionMetadata, server models.PlexServer, token string) *models.PlaybackSession {
	session := &models.PlaybackSession{
		Title:            m.Title,
		Index:            m.Index,
		ParentTitle:      m.ParentTitle,
		ParentIndex:      m.ParentIndex,
		GrandparentTitle: m.GrandparentTitle,
		State:            mapPlayerState(m.Player.State),
		Kind:             mapMediaKind(m.Type),
		DurationMS:       m.Duration,
		ViewOffsetMS:     m.ViewOffset,
	}

	thumb := m.Thumb
	if thumb == "" {
		thumb = m.GrandparentThumb
	}
	if thumb != "" {
		session.Thumbnail = fmt.Sprintf("%s/%s?X-Plex-Token=%s",
			server.BaseURL(), strings.TrimPrefix(thumb, "/"), token)
	}
	return session
}

func mapPlayerState(state string) models.PlayerState {
	switch state {
	case "playing":
		return models.StatePlaying
	case "paused":
		return models.StatePaused
	case "buffering":
		return models.StateBuffering
	default:
		return models.StateIdle
	}
}

func mapMediaKind(mediaType string) models.MediaKind {
	switch mediaType {
	case "episode":
		return models.MediaEpisode
	case "movie":
		return models.MediaMovie
	case "track":
		return models.MediaTrack
	default:
		return models.MediaUnknown
	}
}
