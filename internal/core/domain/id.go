package domain

import (
	"strings"

	"github.com/google/uuid"
)

type SessionID string
type ParticipantID string

func NewSessionID() SessionID {
	return SessionID("h_" + compactUUID())
}

func NewParticipantID() ParticipantID {
	return ParticipantID("p_" + compactUUID())
}

func (id SessionID) String() string {
	return string(id)
}

func (id ParticipantID) String() string {
	return string(id)
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
