package domain

import "time"

// Session binds a user and device to the currently valid access/refresh pair.
// The raw refresh token is never stored; RefreshTokenHash holds its digest.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	AccessJTI        string
	RefreshJTI       string
	RefreshTokenHash string
	// RefreshExpiresAt equals the exp claim of the refresh token identified by RefreshJTI.
	RefreshExpiresAt time.Time
	RevokedAt        *time.Time // nil while the session is live
	// Version increases on every rotation and guards concurrent rotations.
	Version   int64
	CreatedAt time.Time
}

// Rotation is the set of columns replaced together when a session's token pair rotates.
type Rotation struct {
	AccessJTI        string
	RefreshJTI       string
	RefreshTokenHash string
	RefreshExpiresAt time.Time
}
