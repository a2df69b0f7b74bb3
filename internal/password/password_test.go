package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("Str0ngPass!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := Verify("Str0ngPass!", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("same input")
	require.NoError(t, err)
	second, err := Hash("same input")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, hash := range []string{"", "plaintext", "$argon2id$v=19$m=65536,t=3$short", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"} {
		_, err := Verify("anything", hash)
		require.Error(t, err)
	}
}
