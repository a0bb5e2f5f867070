package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Admission is what a client needs to open its control connection.
type Admission struct {
	Session     domain.Session
	Participant domain.Participant
	Token       string
}

// AdmissionService creates sessions and admits participants into them.
type AdmissionService struct {
	sessions     port.SessionRepository
	participants port.ParticipantRepository
	tokens       port.TokenIssuer
	ttl          time.Duration
	now          func() time.Time
}

func NewAdmissionService(sessions port.SessionRepository, participants port.ParticipantRepository, tokens port.TokenIssuer, ttl time.Duration) *AdmissionService {
	return &AdmissionService{
		sessions:     sessions,
		participants: participants,
		tokens:       tokens,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Create opens a new session with the caller as host.
func (s *AdmissionService) Create(ctx context.Context) (Admission, error) {
	session := domain.NewSession(s.now(), s.ttl)
	if err := s.sessions.Create(ctx, session, s.ttl); err != nil {
		return Admission{}, err
	}
	log.Info().Str("huddle_id", session.ID.String()).Dur("ttl", s.ttl).Msg("Huddle created")
	return s.admit(ctx, session, domain.RoleHost)
}

// Join admits a guest into an existing session.
func (s *AdmissionService) Join(ctx context.Context, id domain.SessionID) (Admission, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Admission{}, err
	}
	return s.admit(ctx, session, domain.RoleGuest)
}

func (s *AdmissionService) admit(ctx context.Context, session domain.Session, role domain.Role) (Admission, error) {
	p := domain.Participant{ID: domain.NewParticipantID(), Role: role}
	if err := s.participants.Add(ctx, session.ID, p); err != nil {
		return Admission{}, err
	}

	token, err := s.tokens.Issue(domain.Claims{SessionID: session.ID, ParticipantID: p.ID, Role: role})
	if err != nil {
		return Admission{}, fmt.Errorf("issue token: %w", err)
	}

	log.Info().
		Str("huddle_id", session.ID.String()).
		Str("participant_id", p.ID.String()).
		Str("role", string(role)).
		Msg("Participant admitted")
	return Admission{Session: session, Participant: p, Token: token}, nil
}
