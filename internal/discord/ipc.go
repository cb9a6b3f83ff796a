// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/brokiem/plex-discord-rpc/internal/logging"
)

// IPC opcodes. Handshake opens the session; frames carry commands.
const (
	opHandshake = 0
	opFrame     = 1
	opClose     = 2
)

const (
	ipcTimeout  = 5 * time.Second
	maxFrameLen = 64 * 1024
)

// ErrNoSocket is returned when no Discord client socket can be found.
// Discord is simply not running; the caller retries on its own cadence.
var ErrNoSocket = errors.New("discord: no ipc socket found")

// ErrFrameTooLarge is returned for response frames above maxFrameLen.
var ErrFrameTooLarge = errors.New("discord: ipc frame too large")

// Conn is a handshaken IPC connection to the local Discord client.
// It is not safe for concurrent use; the presence manager serializes
// all traffic.
type Conn struct {
	sock  net.Conn
	appID string
}

// Dial locates the Discord IPC socket, connects, and performs the
// handshake for the given application ID.
func Dial(appID string) (*Conn, error) {
	sock, path, err := dialSocket()
	if err != nil {
		return nil, err
	}

	conn := &Conn{sock: sock, appID: appID}
	if err := conn.handshake(); err != nil {
		sock.Close()
		return nil, fmt.Errorf("discord handshake: %w", err)
	}

	logging.Info().Str("socket", path).Msg("discord ipc connected")
	return conn, nil
}

// dialSocket probes the well-known socket locations in order. Sandboxed
// installs (flatpak, snap) nest the socket under their own runtime
// directories.
func dialSocket() (net.Conn, string, error) {
	for _, dir := range socketDirs() {
		for i := 0; i < 10; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			sock, err := net.DialTimeout("unix", path, ipcTimeout)
			if err == nil {
				return sock, path, nil
			}
		}
	}
	return nil, "", ErrNoSocket
}

func socketDirs() []string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return []string{
		base,
		filepath.Join(base, "app", "com.discordapp.Discord"),
		filepath.Join(base, "snap.discord"),
		filepath.Join(base, ".flatpak", "com.discordapp.Discord", "xdg-run"),
	}
}

func (c *Conn) handshake() error {
	payload := struct {
		V        int    `json:"v"`
		ClientID string `json:"client_id"`
	}{V: 1, ClientID: c.appID}

	if err := c.write(opHandshake, payload); err != nil {
		return err
	}

	op, body, err := c.read()
	if err != nil {
		return err
	}
	if op == opClose {
		return fmt.Errorf("client rejected handshake: %s", body)
	}

	var ready struct {
		Evt string `json:"evt"`
	}
	if err := json.Unmarshal(body, &ready); err != nil {
		return fmt.Errorf("decode handshake response: %w", err)
	}
	if ready.Evt != "READY" {
		return fmt.Errorf("unexpected handshake event %q", ready.Evt)
	}
	return nil
}

// SetActivity publishes the activity. A nil activity clears it, which
// Discord treats as removing the presence card.
func (c *Conn) SetActivity(activity *Activity) error {
	cmd := struct {
		Cmd   string `json:"cmd"`
		Nonce string `json:"nonce"`
		Args  struct {
			PID      int       `json:"pid"`
			Activity *Activity `json:"activity"`
		} `json:"args"`
	}{Cmd: "SET_ACTIVITY", Nonce: uuid.NewString()}
	cmd.Args.PID = os.Getpid()
	cmd.Args.Activity = activity

	if err := c.write(opFrame, cmd); err != nil {
		return err
	}

	op, body, err := c.read()
	if err != nil {
		return err
	}
	if op == opClose {
		return fmt.Errorf("discord closed connection: %s", body)
	}

	var resp struct {
		Evt  string `json:"evt"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode set_activity response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("set_activity rejected: %s", resp.Data.Message)
	}
	return nil
}

// ClearActivity removes the presence card.
func (c *Conn) ClearActivity() error {
	return c.SetActivity(nil)
}

// Close shuts the IPC connection down.
func (c *Conn) Close() error {
	return c.sock.Close()
}

// write sends one framed message: opcode and length as little-endian
// uint32, then the JSON payload.
func (c *Conn) write(op uint32, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode ipc payload: %w", err)
	}

	if err := c.sock.SetWriteDeadline(time.Now().Add(ipcTimeout)); err != nil {
		return err
	}

	frame := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], op)
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(body)))
	copy(frame[8:], body)

	if _, err := c.sock.Write(frame); err != nil {
		return fmt.Errorf("write ipc frame: %w", err)
	}
	return nil
}

// read receives one framed message and returns its opcode and payload.
func (c *Conn) read() (uint32, []byte, error) {
	if err := c.sock.SetReadDeadline(time.Now().Add(ipcTimeout)); err != nil {
		return 0, nil, err
	}

	var header [8]byte
	if _, err := io.ReadFull(c.sock, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read ipc header: %w", err)
	}

	op := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.sock, body); err != nil {
		return 0, nil, fmt.Errorf("read ipc payload: %w", err)
	}
	return op, body, nil
}
