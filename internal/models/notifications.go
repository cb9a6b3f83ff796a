// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package models

// PlexNotificationWrapper is the outer envelope of messages delivered on
// the Plex websocket endpoint (/:/websockets/notifications).
//
// The daemon treats notifications as opaque "something changed" signals
// and never decodes beyond the container type, which is kept for logging.
type PlexNotificationWrapper struct {
	NotificationContainer PlexNotificationContainer `json:"NotificationContainer"`
}

// PlexNotificationContainer carries the notification type ("playing",
// "timeline", "activity", "status", ...).
type PlexNotificationContainer struct {
	Type string `json:"type"`
	Size int    `json:"size"`
}
