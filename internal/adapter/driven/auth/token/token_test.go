package token

import (
	"testing"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner("secret", 5*time.Minute)
	require.NoError(t, err)

	want := domain.Claims{SessionID: "h_1", ParticipantID: "p_1", Role: domain.RoleGuest}
	raw, err := s.Issue(want)
	require.NoError(t, err)

	got, err := s.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignerRejectsExpired(t *testing.T) {
	s, err := NewSigner("secret", time.Minute)
	require.NoError(t, err)

	issuedAt := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issuedAt }
	raw, err := s.Issue(domain.Claims{SessionID: "h_1", ParticipantID: "p_1", Role: domain.RoleHost})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRejectsForeignSignature(t *testing.T) {
	issuer, err := NewSigner("one", time.Minute)
	require.NoError(t, err)
	verifier, err := NewSigner("two", time.Minute)
	require.NoError(t, err)

	raw, err := issuer.Issue(domain.Claims{SessionID: "h_1", ParticipantID: "p_1", Role: domain.RoleHost})
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRejectsMalformed(t *testing.T) {
	s, err := NewSigner("secret", time.Minute)
	require.NoError(t, err)

	_, err = s.Verify("")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"hid": "h_1", "pid": "p_1", "role": "host", "exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRejectsUnknownRole(t *testing.T) {
	s, err := NewSigner("secret", time.Minute)
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"hid": "h_1", "pid": "p_1", "role": "admin", "exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = s.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}
