// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Package events fans engine status updates out to in-process
// subscribers (the HTTP API's websocket hub) over a watermill pub/sub.
package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// TopicStatus carries StatusEvent payloads.
const TopicStatus = "presence.status"

// StatusEvent is a snapshot of the sync state after a tick.
type StatusEvent struct {
	Status         string                  `json:"status"`
	Session        *models.PlaybackSession `json:"session,omitempty"`
	PresenceLive   bool                    `json:"presence_live"`
	Server         string                  `json:"server,omitempty"`
	TickErr        string                  `json:"tick_error,omitempty"`
	ObservedUnixMS int64                   `json:"observed_unix_ms"`
}

// Bus is a thin wrapper over an in-process gochannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the status bus. Subscribers that fall behind lose old
// snapshots, which is harmless; only the latest state matters.
func NewBus() *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NopLogger{},
	)
	return &Bus{pubsub: pubsub}
}

// PublishStatus emits a status snapshot. Failures are logged and
// dropped; the bus is observability plumbing, never control flow.
func (b *Bus) PublishStatus(event StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("encode status event")
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := b.pubsub.Publish(TopicStatus, msg); err != nil {
		logging.Warn().Err(err).Msg("publish status event")
	}
}

// SubscribeStatus returns a channel of decoded status events. The
// channel closes when ctx is canceled.
func (b *Bus) SubscribeStatus(ctx context.Context) (<-chan StatusEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicStatus)
	if err != nil {
		return nil, err
	}

	out := make(chan StatusEvent, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var event StatusEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logging.Warn().Err(err).Msg("decode status event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the pub/sub down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
