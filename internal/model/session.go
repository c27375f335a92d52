package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side login. Only the SHA-256 of the cookie token is stored.
type Session struct {
	Base
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	LastSeenAt time.Time  `json:"last_seen_at" db:"last_seen_at"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// LoginResult is what a successful login hands back to the transport layer.
type LoginResult struct {
	User           *User     `json:"user"`
	SessionID      uuid.UUID `json:"session_id"`
	SessionToken   string    `json:"-"`
	SessionExpires time.Time `json:"session_expires_at"`
	AccessToken    string    `json:"access_token"`
	AccessExpires  time.Time `json:"access_token_expires_at"`
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Email     string
	Language  string
}
