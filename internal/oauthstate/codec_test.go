package oauthstate

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notehaven/notehaven-auth/internal/domain/discord"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.New(42)
	require.NoError(t, err)
	require.Len(t, token.Nonce, 16)

	encoded, err := codec.Encode(token)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, token.WorkspaceID, decoded.WorkspaceID)
	require.Equal(t, token.Nonce, decoded.Nonce)
	require.Equal(t, token.IssuedAt, decoded.IssuedAt)
}

func TestCodec_RejectsKeyOfWrongLength(t *testing.T) {
	_, err := NewCodec(make([]byte, 16))
	require.Error(t, err)
}

func TestCodec_RejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.New(1)
	require.NoError(t, err)
	token.IssuedAt = time.Now().Add(-31 * time.Minute).UnixMilli()

	encoded, err := codec.Encode(token)
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.ErrorIs(t, err, discord.ErrInvalidState)
}

func TestCodec_AcceptsTokenInsideWindow(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.New(1)
	require.NoError(t, err)
	token.IssuedAt = time.Now().Add(-29 * time.Minute).UnixMilli()

	encoded, err := codec.Encode(token)
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.NoError(t, err)
}

func TestCodec_RejectsTamperedCiphertext(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.New(7)
	require.NoError(t, err)
	encoded, err := codec.Encode(token)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	for i := range raw {
		flipped := make([]byte, len(raw))
		copy(flipped, raw)
		flipped[i] ^= 0x01
		_, err = codec.Decode(base64.RawURLEncoding.EncodeToString(flipped))
		require.ErrorIs(t, err, discord.ErrInvalidState, "byte %d", i)
	}
}

func TestCodec_RejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "!!!not-base64!!!", "c2hvcnQ", base64.RawURLEncoding.EncodeToString([]byte("way too short"))} {
		_, err := codec.Decode(input)
		require.ErrorIs(t, err, discord.ErrInvalidState)
	}
}

func TestCodec_RejectsDifferentKey(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	token, err := codec.New(9)
	require.NoError(t, err)
	encoded, err := codec.Encode(token)
	require.NoError(t, err)

	_, err = other.Decode(encoded)
	require.ErrorIs(t, err, discord.ErrInvalidState)
}
