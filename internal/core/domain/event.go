package domain

type LifecycleOp string

const (
	LifecycleAdd    LifecycleOp = "add"
	LifecycleRemove LifecycleOp = "remove"
)

// LifecycleEvent is published on the global channel when a session is
// created or deleted.
type LifecycleEvent struct {
	Op        LifecycleOp `json:"op"`
	SessionID SessionID   `json:"session_id"`
}

type MemberOp string

const (
	MemberAdd    MemberOp = "add_participant"
	MemberRemove MemberOp = "remove_participant"
)

// MemberEvent is published on a session's membership channel.
type MemberEvent struct {
	Op            MemberOp      `json:"op"`
	SessionID     SessionID     `json:"session_id"`
	ParticipantID ParticipantID `json:"participant_id"`
}

type SessionEventOp string

const (
	SessionEventNewProducer SessionEventOp = "new_producer"
)

// SessionEvent travels on a session's application channel between control
// handlers running in different worker processes.
type SessionEvent struct {
	Op            SessionEventOp `json:"op"`
	SessionID     SessionID      `json:"session_id"`
	ParticipantID ParticipantID  `json:"participant_id,omitempty"`
	ProducerID    string         `json:"producer_id,omitempty"`
}

func NewProducerEvent(sid SessionID, pid ParticipantID, producerID string) SessionEvent {
	return SessionEvent{
		Op:            SessionEventNewProducer,
		SessionID:     sid,
		ParticipantID: pid,
		ProducerID:    producerID,
	}
}
