package secure

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// Box encrypts small secrets (provider API keys) before they are
// persisted in the settings store. Ciphertext format is
// base64(nonce || sealed) using XChaCha20-Poly1305.
type Box struct {
	key []byte
}

// LoadOrCreateKey reads the 32-byte key at path, generating and
// persisting one with 0600 permissions on first run.
func LoadOrCreateKey(path string) (*Box, error) {
	if path == "" {
		return nil, errors.New("secure: key path is required")
	}
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("secure: key file %s has %d bytes, want %d", path, len(key), chacha20poly1305.KeySize)
		}
		return &Box{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("secure: read key: %w", err)
	}
	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secure: generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("secure: create key dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("secure: write key: %w", err)
	}
	return &Box{key: key}, nil
}

// Seal encrypts plaintext and returns a base64 envelope.
func (b *Box) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secure: init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secure: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts an envelope produced by Seal.
func (b *Box) Open(envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("secure: decode envelope: %w", err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secure: init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("secure: envelope too short")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("secure: open envelope: %w", err)
	}
	return string(plaintext), nil
}
