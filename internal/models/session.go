// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package models defines the domain types shared across the daemon:
// playback sessions observed on a Plex server, the server targets they
// are observed on, and the websocket notification envelopes Plex emits.
package models

import "fmt"

// PlayerState is the playback state reported by the Plex player element.
type PlayerState string

const (
	StatePlaying   PlayerState = "playing"
	StatePaused    PlayerState = "paused"
	StateBuffering PlayerState = "buffering"
	StateIdle      PlayerState = "idle"
)

// MediaKind classifies the media item being played.
type MediaKind string

const (
	MediaEpisode MediaKind = "episode"
	MediaMovie   MediaKind = "movie"
	MediaTrack   MediaKind = "track"
	MediaUnknown MediaKind = "unknown"
	MediaIdle    MediaKind = "idle"
)

// PlaybackSession is a value snapshot of what is currently playing.
//
// Duration and ViewOffset are opaque millisecond counters taken from the
// server; the engine never enforces ViewOffset <= Duration because remote
// data may violate it. Index fields use 0 for "not present" (Plex episode
// and season indices start at 1).
type PlaybackSession struct {
	Title            string      `json:"title"`
	Index            int         `json:"index,omitempty"`
	ParentTitle      string      `json:"parent_title,omitempty"`
	ParentIndex      int         `json:"parent_index,omitempty"`
	GrandparentTitle string      `json:"grandparent_title,omitempty"`
	State            PlayerState `json:"state"`
	Kind             MediaKind   `json:"kind"`
	DurationMS       int64       `json:"duration_ms"`
	ViewOffsetMS     int64       `json:"view_offset_ms"`
	Thumbnail        string      `json:"thumbnail,omitempty"`
}

// SameIdentity reports whether two sessions show the same thing in the
// same player state. ViewOffset is deliberately excluded: position is
// compared via drift arithmetic, not equality.
func (s *PlaybackSession) SameIdentity(o *PlaybackSession) bool {
	if o == nil {
		return false
	}
	return s.Title == o.Title && s.State == o.State && s.Kind == o.Kind
}

// PlexServer identifies a Plex Media Server endpoint. Owned affects the
// polling strategy only, never identity.
type PlexServer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Owned   bool   `json:"owned"`
}

// BaseURL returns the HTTP base URL for API requests against this server.
func (s PlexServer) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Address, s.Port)
}

func (s PlexServer) String() string {
	return fmt.Sprintf("%s (%s:%d)", s.Name, s.Address, s.Port)
}
