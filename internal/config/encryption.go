// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

// Credential encryption for the persisted Plex auth token.
//
// Algorithm: AES-256-GCM with a 12-byte random nonce per encryption and a
// key derived from the state secret using HKDF-SHA256. The ciphertext
// format is base64(nonce || ciphertext || tag).
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// tokenEncryptionSalt binds derived keys to this application's
	// credential encryption use case.
	tokenEncryptionSalt = "plex-discord-rpc-credentials"

	tokenEncryptionInfo = "token-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when an empty state secret is provided.
	ErrEmptySecret = errors.New("state secret cannot be empty")

	// ErrDecryptionFailed is returned when decryption fails, either from
	// an invalid ciphertext or a tampered authentication tag.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrCiphertextTooShort is returned when the decoded ciphertext is
	// shorter than nonce plus tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// TokenEncryptor provides AES-256-GCM encryption for the stored auth token.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor derives a 256-bit AES key from the state secret using
// HKDF-SHA256 and prepares the GCM cipher.
func NewTokenEncryptor(secret string) (*TokenEncryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, aesKeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(tokenEncryptionSalt), []byte(tokenEncryptionInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &TokenEncryptor{aead: aead}, nil
}

// Encrypt encrypts a plaintext string into base64(nonce || ciphertext || tag).
// Empty plaintext round-trips to empty string.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, "invalid base64")
	}
	if len(raw) < gcmNonceSize+e.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := raw[:gcmNonceSize], raw[gcmNonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
