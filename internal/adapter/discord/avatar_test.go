package discord

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	domaindiscord "github.com/notehaven/notehaven-auth/internal/domain/discord"
)

func TestAvatarURL_GuildAvatarWins(t *testing.T) {
	url, err := AvatarURL("80351110224678912", "userhash", "197038439483310086", "guildhash", AvatarOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.discordapp.com/guilds/197038439483310086/users/80351110224678912/avatars/guildhash.png?size=256", url)
}

func TestAvatarURL_UserAvatar(t *testing.T) {
	url, err := AvatarURL("80351110224678912", "8342729096ea3675442027381ff50dfe", "", "", AvatarOptions{Size: 512})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.discordapp.com/avatars/80351110224678912/8342729096ea3675442027381ff50dfe.png?size=512", url)
}

func TestAvatarURL_DefaultAvatarIsDeterministic(t *testing.T) {
	// (80351110224678912 >> 22) % 6 == 5
	want := "https://cdn.discordapp.com/embed/avatars/5.png?size=256"
	for i := 0; i < 3; i++ {
		url, err := AvatarURL("80351110224678912", "", "", "", AvatarOptions{})
		require.NoError(t, err)
		require.Equal(t, want, url)
	}
}

func TestAvatarURL_DefaultAvatarSpansFixedSet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("%d", uint64(i)<<22)
		url, err := AvatarURL(id, "", "", "", AvatarOptions{})
		require.NoError(t, err)
		seen[url] = true
		require.Contains(t, url, fmt.Sprintf("/embed/avatars/%d.png", i))
	}
	require.Len(t, seen, 6)
}

func TestAvatarURL_AnimatedHashForcesGif(t *testing.T) {
	url, err := AvatarURL("80351110224678912", "a_deadbeef", "", "", AvatarOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.discordapp.com/avatars/80351110224678912/a_deadbeef.gif?size=256", url)
}

func TestAvatarURL_StaticPinOverridesAnimated(t *testing.T) {
	url, err := AvatarURL("80351110224678912", "a_deadbeef", "", "", AvatarOptions{Static: true})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.discordapp.com/avatars/80351110224678912/a_deadbeef.png?size=256", url)
}

func TestAvatarURL_SizeBounds(t *testing.T) {
	for _, size := range []int{15, 4097, -1} {
		_, err := AvatarURL("1", "hash", "", "", AvatarOptions{Size: size})
		require.ErrorIs(t, err, domaindiscord.ErrInvalidArgument)
	}
	for _, size := range []int{16, 256, 4096} {
		_, err := AvatarURL("1", "hash", "", "", AvatarOptions{Size: size})
		require.NoError(t, err)
	}
}

func TestAuthorizeURL_CarriesStateAndScopes(t *testing.T) {
	cfg := ClientConfig{
		ClientID:    "client-id",
		CallbackURL: "https://wiki.example.com/auth/discord/callback",
	}
	url := AuthorizeURL(cfg, "opaque-state")
	require.Contains(t, url, "https://discord.com/api/oauth2/authorize")
	require.Contains(t, url, "state=opaque-state")
	require.Contains(t, url, "client_id=client-id")
	require.Contains(t, url, "guilds.members.read")
}
