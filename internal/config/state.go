// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/brokiem/plex-discord-rpc/internal/models"
)

// UserState is the mutable per-user state the daemon persists between
// runs: the device identity, the auth credentials obtained via the PIN
// flow, and the selected server.
type UserState struct {
	// ClientID is the X-Plex-Client-Identifier; generated once and kept
	// stable so plex.tv recognizes the device.
	ClientID string `json:"client_id"`

	AuthToken string `json:"auth_token,omitempty"`
	Username  string `json:"username,omitempty"`

	Server *models.PlexServer `json:"server,omitempty"`
}

// Authenticated reports whether credentials are present. Their absence is
// a legitimate steady state, never an error.
func (s *UserState) Authenticated() bool {
	return s.AuthToken != "" && s.Username != ""
}

// StateStore persists UserState as a JSON file with atomic writes. When
// an encryptor is configured the auth token is encrypted at rest.
type StateStore struct {
	path      string
	encryptor *TokenEncryptor
}

// NewStateStore creates a store at path. encryptor may be nil, in which
// case the token is stored in the clear.
func NewStateStore(path string, encryptor *TokenEncryptor) *StateStore {
	return &StateStore{path: path, encryptor: encryptor}
}

// Load reads the state file. A missing file yields a fresh state with a
// newly generated client identifier.
func (s *StateStore) Load() (*UserState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &UserState{ClientID: uuid.NewString()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	state := &UserState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}

	if s.encryptor != nil && state.AuthToken != "" {
		token, err := s.encryptor.Decrypt(state.AuthToken)
		if err != nil {
			return nil, fmt.Errorf("decrypt auth token: %w", err)
		}
		state.AuthToken = token
	}

	if state.ClientID == "" {
		state.ClientID = uuid.NewString()
	}
	return state, nil
}

// Save writes the state file atomically, creating parent directories as
// needed.
func (s *StateStore) Save(state *UserState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	onDisk := *state
	if s.encryptor != nil && onDisk.AuthToken != "" {
		token, err := s.encryptor.Encrypt(onDisk.AuthToken)
		if err != nil {
			return fmt.Errorf("encrypt auth token: %w", err)
		}
		onDisk.AuthToken = token
	}

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}

	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadOrCreateSecret returns the state secret stored next to the state
// file, generating a random one on first run. An explicitly configured
// secret should be preferred; this covers installs that never set one.
func LoadOrCreateSecret(statePath string) (string, error) {
	path := filepath.Join(filepath.Dir(statePath), "secret")

	data, err := os.ReadFile(path)
	if err == nil {
		secret := strings.TrimSpace(string(data))
		if secret != "" {
			return secret, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read secret file: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create secret dir: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write secret file: %w", err)
	}
	return secret, nil
}
