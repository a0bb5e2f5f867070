package domain

import "encoding/json"

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

type MediaOp string

const (
	MediaPause  MediaOp = "pause"
	MediaResume MediaOp = "resume"
	MediaClose  MediaOp = "close"
)

// Produced is the media server's answer to a produce call. Data is forwarded
// to the client untouched.
type Produced struct {
	ID   string
	Data json.RawMessage
}

type ProducerInfo struct {
	ID   string    `json:"id"`
	Kind MediaKind `json:"kind"`
}

type MediaParticipant struct {
	ParticipantID ParticipantID  `json:"participantId"`
	Producers     []ProducerInfo `json:"producers"`
}

// MediaSessionState is the media server's view of one session.
type MediaSessionState struct {
	Participants []MediaParticipant `json:"participants"`
}
