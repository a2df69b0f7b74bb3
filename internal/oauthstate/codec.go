package oauthstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/notehaven/notehaven-auth/internal/domain/discord"
)

// MaxAge is the freshness window for state tokens. Anything older is
// rejected even when it decrypts cleanly.
const MaxAge = 30 * time.Minute

const nonceLen = 16

// Token is the anti-CSRF value round-tripped through Discord's redirect.
// It never touches storage; its only existence is the encrypted `state`
// query parameter.
type Token struct {
	WorkspaceID int64  `json:"workspace_id"`
	Nonce       []byte `json:"nonce"`
	IssuedAt    int64  `json:"issued_at"`
}

// Codec encrypts and decrypts state tokens with a process-wide key that
// is loaded once at construction and never rotated at runtime.
type Codec struct {
	gcm cipher.AEAD
	now func() time.Time
}

// NewCodec builds a codec from a 32-byte AES key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("state key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("state gcm: %w", err)
	}
	return &Codec{gcm: gcm, now: time.Now}, nil
}

// New mints a fresh token for the workspace with a random nonce.
func (c *Codec) New(workspaceID int64) (Token, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return Token{}, fmt.Errorf("state nonce: %w", err)
	}
	return Token{
		WorkspaceID: workspaceID,
		Nonce:       nonce,
		IssuedAt:    c.now().UnixMilli(),
	}, nil
}

// Encode serializes and encrypts the token. Output layout is
// base64url(nonce || ciphertext || tag).
func (c *Codec) Encode(token Token) (string, error) {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("state nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode decrypts and validates an encoded token. It fails closed: any
// malformed, undecryptable, or stale input yields ErrInvalidState with
// no detail about which check tripped.
func (c *Codec) Decode(encoded string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Token{}, discord.ErrInvalidState
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return Token{}, discord.ErrInvalidState
	}
	plaintext, err := c.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return Token{}, discord.ErrInvalidState
	}
	var token Token
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return Token{}, discord.ErrInvalidState
	}
	if token.WorkspaceID == 0 {
		return Token{}, discord.ErrInvalidState
	}
	issued := time.UnixMilli(token.IssuedAt)
	if c.now().Sub(issued) > MaxAge {
		return Token{}, discord.ErrInvalidState
	}
	return token, nil
}
