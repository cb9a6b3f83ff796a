// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package discord implements the local Discord IPC socket protocol used
// to publish rich presence activities.
package discord

// Activity types understood by the Discord client. Plain "playing" is
// the zero value; media presences use watching or listening.
const (
	TypePlaying   = 0
	TypeListening = 2
	TypeWatching  = 3
)

// Timestamps are unix seconds bounding the activity progress bar.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets name the large and small images shown on the presence card.
// Image values are either asset keys uploaded to the Discord app or
// plain https URLs.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the rich presence payload sent via SET_ACTIVITY.
type Activity struct {
	Type       int         `json:"type"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}
