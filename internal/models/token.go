package models

import (
	"time"
)

// RefreshToken is the server-side session record.
// A token is valid iff Revoked is false and ExpiresAt is in the future.
// Revocation is terminal: there is no way back to the active state.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is issued on every successful register, login and refresh.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
