package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	s := NewSession(now, time.Hour)
	assert.True(t, s.Expires())
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
	assert.Equal(t, time.Hour, s.ExpiresAt.Sub(s.CreatedAt))
	assert.Regexp(t, `^h_[0-9a-f]{32}$`, string(s.ID))
}

func TestNewSessionWithoutTTLNeverExpires(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		s := NewSession(time.Now(), ttl)
		assert.False(t, s.Expires())
		assert.True(t, s.ExpiresAt.IsZero())
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("host")
	require.NoError(t, err)
	assert.Equal(t, RoleHost, role)

	_, err = ParseRole("admin")
	require.Error(t, err)
}
