package domain

import "time"

// SigningKey stores per-workspace session signing keys.
type SigningKey struct {
	ID          int64
	WorkspaceID int64
	KID         string
	Secret      []byte
	Algorithm   string
	IsActive    bool
	CreatedAt   time.Time
	RotatedAt   *time.Time
}
