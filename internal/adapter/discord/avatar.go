package discord

import (
	"fmt"
	"strconv"
	"strings"

	domaindiscord "github.com/notehaven/notehaven-auth/internal/domain/discord"
)

const cdnBaseURL = "https://cdn.discordapp.com"

// defaultAvatarCount is the size of Discord's fixed default-avatar set.
const defaultAvatarCount = 6

// AvatarOptions tunes avatar URL derivation. Zero values mean size 256,
// png, animated hashes upgraded to gif.
type AvatarOptions struct {
	Size   int
	Format string
	// Static pins the requested format even for animated (a_-prefixed)
	// hashes.
	Static bool
}

// AvatarURL derives the display avatar for a user. Guild-specific
// avatars win over the user's global avatar; with neither, one of the
// default avatars is picked deterministically from the user ID. Pure.
func AvatarURL(userID, avatarHash, guildID, guildAvatarHash string, opts AvatarOptions) (string, error) {
	size := opts.Size
	if size == 0 {
		size = 256
	}
	if size < 16 || size > 4096 {
		return "", fmt.Errorf("%w: size must be between 16 and 4096", domaindiscord.ErrInvalidArgument)
	}
	format := opts.Format
	if format == "" {
		format = "png"
	}

	if guildID != "" && guildAvatarHash != "" {
		return fmt.Sprintf("%s/guilds/%s/users/%s/avatars/%s.%s?size=%d",
			cdnBaseURL, guildID, userID, guildAvatarHash, fileFormat(guildAvatarHash, format, opts.Static), size), nil
	}

	if avatarHash == "" {
		return fmt.Sprintf("%s/embed/avatars/%d.png?size=%d", cdnBaseURL, defaultAvatarIndex(userID), size), nil
	}

	return fmt.Sprintf("%s/avatars/%s/%s.%s?size=%d",
		cdnBaseURL, userID, avatarHash, fileFormat(avatarHash, format, opts.Static), size), nil
}

// fileFormat upgrades animated hashes to gif unless the caller pinned a
// static format.
func fileFormat(hash, format string, static bool) string {
	if !static && strings.HasPrefix(hash, "a_") && format != "gif" {
		return "gif"
	}
	return format
}

// defaultAvatarIndex maps a numeric user ID into the default-avatar set
// via (id >> 22) mod 6, matching Discord's own derivation for new-style
// usernames.
func defaultAvatarIndex(userID string) int {
	id, err := strconv.ParseUint(userID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % defaultAvatarCount)
}
