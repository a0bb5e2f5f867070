package port

import (
	"context"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
)

// Stream is a lazily consumed pub/sub subscription. Each call that returns a
// Stream opens a fresh subscription; Close releases it.
type Stream[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

type SessionRepository interface {
	// Create writes the session only if its id is absent. A ttl <= 0 stores
	// the session without expiry.
	Create(ctx context.Context, s domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id domain.SessionID) (domain.Session, error)
	Delete(ctx context.Context, id domain.SessionID) error
	// ListIDs scans the store. It is meant for reconciliation only.
	ListIDs(ctx context.Context) ([]domain.SessionID, error)

	LifecycleEvents(ctx context.Context) (Stream[domain.LifecycleEvent], error)
	SessionEvents(ctx context.Context, id domain.SessionID) (Stream[domain.SessionEvent], error)
	PublishSessionEvent(ctx context.Context, id domain.SessionID, evt domain.SessionEvent) error
}

type ParticipantRepository interface {
	Add(ctx context.Context, sid domain.SessionID, p domain.Participant) error
	Get(ctx context.Context, pid domain.ParticipantID) (domain.Participant, error)
	Delete(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID) error
	ListMembers(ctx context.Context, sid domain.SessionID) ([]domain.ParticipantID, error)
	MemberEvents(ctx context.Context, sid domain.SessionID) (Stream[domain.MemberEvent], error)
}
