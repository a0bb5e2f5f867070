package domain

import (
	"fmt"
	"time"
)

// Session is the authoritative record of a huddle. It is immutable once
// created; only the participants attached to it change.
type Session struct {
	ID        SessionID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSession stamps a fresh session. A ttl <= 0 makes it persistent, which
// leaves ExpiresAt zero.
func NewSession(now time.Time, ttl time.Duration) Session {
	now = now.UTC()
	s := Session{ID: NewSessionID(), CreatedAt: now}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

func (s Session) Expires() bool {
	return !s.ExpiresAt.IsZero()
}

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleHost, RoleGuest:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Participant is never updated in place; role is fixed at creation.
type Participant struct {
	ID   ParticipantID `json:"id"`
	Role Role          `json:"role"`
}
