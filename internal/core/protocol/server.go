package protocol

import (
	"encoding/json"

	"github.com/Wyydra/huddle/internal/core/domain"
)

type ServerKind string

const (
	KindRouterRtpCapabilities ServerKind = "routerRtpCapabilities"
	KindTransportCreated      ServerKind = "transportCreated"
	KindAck                   ServerKind = "ack"
	KindProduced              ServerKind = "produced"
	KindConsumed              ServerKind = "consumed"
	KindNewProducer           ServerKind = "newProducer"
	KindError                 ServerKind = "error"
)

type ServerMessage interface {
	ServerKind() ServerKind
}

// DataMessage covers every server message that forwards a media-server
// payload verbatim.
type DataMessage struct {
	Type ServerKind      `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (m DataMessage) ServerKind() ServerKind { return m.Type }

func RouterRtpCapabilities(data json.RawMessage) DataMessage {
	return DataMessage{Type: KindRouterRtpCapabilities, Data: data}
}

func TransportCreated(data json.RawMessage) DataMessage {
	return DataMessage{Type: KindTransportCreated, Data: data}
}

func Produced(data json.RawMessage) DataMessage {
	return DataMessage{Type: KindProduced, Data: data}
}

func Consumed(data json.RawMessage) DataMessage {
	return DataMessage{Type: KindConsumed, Data: data}
}

type Ack struct {
	Type        ServerKind `json:"type"`
	Op          ClientKind `json:"op"`
	TransportID string     `json:"transportId,omitempty"`
	ProducerID  string     `json:"producerId,omitempty"`
	ConsumerID  string     `json:"consumerId,omitempty"`
}

func (Ack) ServerKind() ServerKind { return KindAck }

func NewAck(op ClientKind) Ack {
	return Ack{Type: KindAck, Op: op}
}

type NewProducer struct {
	Type          ServerKind           `json:"type"`
	HuddleID      domain.SessionID     `json:"huddleId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	ProducerID    string               `json:"producerId"`
}

func (NewProducer) ServerKind() ServerKind { return KindNewProducer }

func NewProducerNotice(sid domain.SessionID, pid domain.ParticipantID, producerID string) NewProducer {
	return NewProducer{
		Type:          KindNewProducer,
		HuddleID:      sid,
		ParticipantID: pid,
		ProducerID:    producerID,
	}
}

// Error reports a failed operation; the connection stays open.
type Error struct {
	Type    ServerKind `json:"type"`
	Op      ClientKind `json:"op"`
	Message string     `json:"message"`
}

func (Error) ServerKind() ServerKind { return KindError }

func NewError(op ClientKind, err error) Error {
	return Error{Type: KindError, Op: op, Message: err.Error()}
}
