package discord

// Identity is the normalized profile returned by Discord for the
// authenticated user. It is transient: only derived fields (provider id,
// avatar URL) are ever written to the local user record.
type Identity struct {
	ID          string
	Username    string
	GlobalName  string
	Email       string
	Verified    bool
	AvatarHash  string
	AccessToken string
}

// GuildMember is the subset of the guild-member resource the login flow
// consumes.
type GuildMember struct {
	Nick       string
	AvatarHash string
	Roles      []string
}
