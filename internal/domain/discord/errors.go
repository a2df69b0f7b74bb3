package discord

import "errors"

var (
	// ErrInvalidState indicates a tampered, undecryptable, or stale
	// anti-CSRF state token.
	ErrInvalidState = errors.New("discord: invalid state")
	// ErrNotConfigured signals the workspace has no usable Discord
	// integration (disabled or missing credentials).
	ErrNotConfigured = errors.New("discord: not configured")
	// ErrProvisioningDisabled indicates the identity has no local account
	// and just-in-time provisioning is off for the workspace.
	ErrProvisioningDisabled = errors.New("discord: provisioning disabled")
	// ErrNotAMember indicates the provider reports the user is not in the
	// required guild.
	ErrNotAMember = errors.New("discord: not a guild member")
	// ErrProviderUnavailable wraps transport failures talking to Discord.
	ErrProviderUnavailable = errors.New("discord: provider unavailable")
	// ErrInvalidOrExpiredToken indicates a pending-signup token that is
	// absent, of the wrong kind, already consumed, or past its expiry.
	ErrInvalidOrExpiredToken = errors.New("discord: invalid or expired token")
	// ErrInvalidArgument indicates caller input validation errors.
	ErrInvalidArgument = errors.New("discord: invalid argument")
	// ErrEmailMissing indicates the provider profile carries no email.
	ErrEmailMissing = errors.New("discord: email not found")
)
