// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package presence

import (
	"testing"
	"time"

	"github.com/brokiem/plex-discord-rpc/internal/discord"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

func TestBuildActivityMapping(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)

	tests := []struct {
		name        string
		session     models.PlaybackSession
		wantType    int
		wantDetails string
		wantState   string
	}{
		{
			name: "episode",
			session: models.PlaybackSession{
				Title: "Episode 3", Index: 3, ParentIndex: 1,
				GrandparentTitle: "Some Show",
				Kind:             models.MediaEpisode, State: models.StatePaused,
			},
			wantType:    discord.TypeWatching,
			wantDetails: "S1·E3 — Episode 3",
			wantState:   "Some Show",
		},
		{
			name: "movie",
			session: models.PlaybackSession{
				Title: "Big Film",
				Kind:  models.MediaMovie, State: models.StatePaused,
			},
			wantType:    discord.TypeWatching,
			wantDetails: "Big Film",
		},
		{
			name: "track",
			session: models.PlaybackSession{
				Title:            "Song",
				GrandparentTitle: "Artist",
				Kind:             models.MediaTrack, State: models.StatePlaying,
			},
			wantType:    discord.TypeListening,
			wantDetails: "Song",
			wantState:   "Artist",
		},
		{
			name: "unknown kind concatenates lineage",
			session: models.PlaybackSession{
				Title:            "Clip",
				ParentTitle:      "Collection",
				GrandparentTitle: "Library",
				Kind:             models.MediaUnknown, State: models.StatePaused,
			},
			wantType:    discord.TypePlaying,
			wantDetails: "Library - Collection",
			wantState:   "Clip",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			activity := BuildActivity(&tt.session, now)
			if activity.Type != tt.wantType {
				t.Errorf("type = %d, want %d", activity.Type, tt.wantType)
			}
			if activity.Details != tt.wantDetails {
				t.Errorf("details = %q, want %q", activity.Details, tt.wantDetails)
			}
			if activity.State != tt.wantState {
				t.Errorf("state = %q, want %q", activity.State, tt.wantState)
			}
		})
	}
}

func TestBuildActivityTimestampsOnlyWhilePlaying(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	session := models.PlaybackSession{
		Title: "Big Film", Kind: models.MediaMovie,
		State:      models.StatePlaying,
		DurationMS: 7200000, ViewOffsetMS: 600000,
	}

	activity := BuildActivity(&session, now)
	if activity.Timestamps == nil {
		t.Fatal("playing session should carry timestamps")
	}
	if got := activity.Timestamps.Start; got != now.Unix()-600 {
		t.Errorf("start = %d, want elapsed rewound from now", got)
	}
	if got := activity.Timestamps.End; got != now.Unix()+6600 {
		t.Errorf("end = %d, want remaining added to now", got)
	}
	if activity.Assets.SmallImage != "" {
		t.Errorf("playing session should not carry a status badge")
	}

	session.State = models.StatePaused
	paused := BuildActivity(&session, now)
	if paused.Timestamps != nil {
		t.Error("paused session must omit timestamps")
	}
	if paused.Assets.SmallImage != "pause-circle" || paused.Assets.SmallText != "Paused" {
		t.Errorf("badge = %q/%q", paused.Assets.SmallImage, paused.Assets.SmallText)
	}
}

func TestBuildActivityFallbackArt(t *testing.T) {
	t.Parallel()

	session := models.PlaybackSession{Title: "Big Film", Kind: models.MediaMovie, State: models.StatePaused}
	activity := BuildActivity(&session, time.Unix(1700000000, 0))
	if activity.Assets.LargeImage != "plex" {
		t.Errorf("large image = %q, want the plex fallback asset", activity.Assets.LargeImage)
	}

	session.Thumbnail = "https://server/thumb?X-Plex-Token=t"
	activity = BuildActivity(&session, time.Unix(1700000000, 0))
	if activity.Assets.LargeImage != session.Thumbnail {
		t.Errorf("large image = %q, want the session thumbnail", activity.Assets.LargeImage)
	}
}
