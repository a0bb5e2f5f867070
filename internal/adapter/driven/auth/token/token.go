// Package token issues and verifies the signed streaming tokens presented on
// the control endpoint.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid streaming token")

type claims struct {
	HuddleID      string `json:"hid"`
	ParticipantID string `json:"pid"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// implements port.TokenIssuer and port.TokenVerifier
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret must be provided")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *Signer) Issue(c domain.Claims) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		HuddleID:      c.SessionID.String(),
		ParticipantID: c.ParticipantID.String(),
		Role:          string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Signer) Verify(raw string) (domain.Claims, error) {
	if raw == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing", ErrInvalidToken)
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.HuddleID == "" || parsed.ParticipantID == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing huddle or participant", ErrInvalidToken)
	}
	role, err := domain.ParseRole(parsed.Role)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return domain.Claims{
		SessionID:     domain.SessionID(parsed.HuddleID),
		ParticipantID: domain.ParticipantID(parsed.ParticipantID),
		Role:          role,
	}, nil
}
