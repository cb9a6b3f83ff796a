// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package presence

import (
	"fmt"
	"strings"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/discord"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// BuildActivity maps a playback session onto the Discord activity card.
//
// Episodes render as "S1·E3 — Title" with the series name as state,
// movies as a bare title, tracks as title plus artist. Timestamps are
// attached only while playing so the client renders a live countdown;
// paused and buffering sessions get a small status icon instead.
func BuildActivity(session *models.PlaybackSession, now time.Time) *discord.Activity {
	activity := &discord.Activity{}

	switch session.Kind {
	case models.MediaEpisode:
		activity.Type = discord.TypeWatching
		activity.Details = fmt.Sprintf("S%d·E%d — %s", session.ParentIndex, session.Index, session.Title)
		activity.State = session.GrandparentTitle
	case models.MediaMovie:
		activity.Type = discord.TypeWatching
		activity.Details = session.Title
	case models.MediaTrack:
		activity.Type = discord.TypeListening
		activity.Details = session.Title
		activity.State = session.GrandparentTitle
	default:
		activity.Type = discord.TypePlaying
		parts := make([]string, 0, 2)
		if session.GrandparentTitle != "" {
			parts = append(parts, session.GrandparentTitle)
		}
		if session.ParentTitle != "" {
			parts = append(parts, session.ParentTitle)
		}
		activity.Details = strings.Join(parts, " - ")
		activity.State = session.Title
	}

	activity.Assets = &discord.Assets{
		LargeImage: session.Thumbnail,
		LargeText:  session.Title,
	}
	if activity.Assets.LargeImage == "" {
		activity.Assets.LargeImage = "plex"
	}

	if session.State == models.StatePlaying {
		elapsed := session.ViewOffsetMS / 1000
		remaining := (session.DurationMS - session.ViewOffsetMS) / 1000
		activity.Timestamps = &discord.Timestamps{
			Start: now.Unix() - elapsed,
			End:   now.Unix() + remaining,
		}
	} else {
		activity.Assets.SmallImage, activity.Assets.SmallText = stateBadge(session.State)
	}

	return activity
}

func stateBadge(state models.PlayerState) (image, text string) {
	switch state {
	case models.StatePaused:
		return "pause-circle", "Paused"
	case models.StateBuffering:
		return "sand-clock", "Buffering"
	default:
		return "sleep-mode", "Idle"
	}
}
