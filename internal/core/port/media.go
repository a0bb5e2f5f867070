package port

import (
	"context"
	"encoding/json"

	"github.com/Wyydra/huddle/internal/core/domain"
)

// MediaServer is the external media-routing server (SFU).
type MediaServer interface {
	EnsureSession(ctx context.Context, sid domain.SessionID) (json.RawMessage, error)
	CreateTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, direction string) (json.RawMessage, error)
	ConnectTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, dtlsParameters json.RawMessage) error
	Produce(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage) (domain.Produced, error)
	Consume(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID, producerID string, rtpCapabilities json.RawMessage) (json.RawMessage, error)
	ProducerOp(ctx context.Context, op domain.MediaOp, producerID string) error
	ConsumerOp(ctx context.Context, op domain.MediaOp, consumerID string) error
	SessionState(ctx context.Context, sid domain.SessionID) (domain.MediaSessionState, error)
}
