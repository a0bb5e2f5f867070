// Package protocol defines the closed sets of messages exchanged with a
// client over the control connection.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidMessage = errors.New("invalid client message")

type ClientKind string

const (
	KindCreateTransport  ClientKind = "createTransport"
	KindConnectTransport ClientKind = "connectTransport"
	KindProduce          ClientKind = "produce"
	KindRelayProducers   ClientKind = "relayProducers"
	KindConsume          ClientKind = "consume"
	KindProducerOp       ClientKind = "producerOp"
	KindConsumerOp       ClientKind = "consumerOp"
	KindClose            ClientKind = "close"
)

// ClientMessage is implemented only by the message types in this file.
type ClientMessage interface {
	Kind() ClientKind
	clientMessage()
}

type CreateTransport struct {
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=send recv"`
}

// ConnectTransport fields are optional on the wire; an empty one makes the
// request a no-op.
type ConnectTransport struct {
	TransportID    string          `json:"transportId"`
	DtlsParameters json.RawMessage `json:"dtlsParameters" validate:"omitempty,jsonobject=nullable"`
}

// Empty reports whether the request lacks a transport id or carries no
// DTLS parameters (absent, null or {}).
func (m ConnectTransport) Empty() bool {
	if m.TransportID == "" {
		return true
	}
	trimmed := bytes.TrimSpace(m.DtlsParameters)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}

type Produce struct {
	TransportID   string           `json:"transportId" validate:"required"`
	MediaKind     domain.MediaKind `json:"kind" validate:"required,oneof=audio video"`
	RtpParameters json.RawMessage  `json:"rtpParameters" validate:"required,jsonobject"`
}

type RelayProducers struct{}

type Consume struct {
	TransportID     string          `json:"transportId" validate:"required"`
	ProducerID      string          `json:"producerId" validate:"required"`
	RtpCapabilities json.RawMessage `json:"rtpCapabilities" validate:"required,jsonobject"`
}

type ProducerOp struct {
	Op         domain.MediaOp `json:"op" validate:"required,oneof=pause resume close"`
	ProducerID string         `json:"producerId" validate:"required"`
}

type ConsumerOp struct {
	Op         domain.MediaOp `json:"op" validate:"required,oneof=pause resume close"`
	ConsumerID string         `json:"consumerId" validate:"required"`
}

type Close struct{}

func (CreateTransport) Kind() ClientKind  { return KindCreateTransport }
func (ConnectTransport) Kind() ClientKind { return KindConnectTransport }
func (Produce) Kind() ClientKind          { return KindProduce }
func (RelayProducers) Kind() ClientKind   { return KindRelayProducers }
func (Consume) Kind() ClientKind          { return KindConsume }
func (ProducerOp) Kind() ClientKind       { return KindProducerOp }
func (ConsumerOp) Kind() ClientKind       { return KindConsumerOp }
func (Close) Kind() ClientKind            { return KindClose }

func (CreateTransport) clientMessage()  {}
func (ConnectTransport) clientMessage() {}
func (Produce) clientMessage()          {}
func (RelayProducers) clientMessage()   {}
func (Consume) clientMessage()          {}
func (ProducerOp) clientMessage()       {}
func (ConsumerOp) clientMessage()       {}
func (Close) clientMessage()            {}

var (
	validate = newValidator()
	jsonNull = []byte("null")
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("jsonobject", validateJSONObject); err != nil {
		panic(err)
	}
	return v
}

// validateJSONObject accepts a raw JSON object. With the "nullable" param a
// literal null is accepted as well.
func validateJSONObject(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	if fl.Param() == "nullable" && bytes.Equal(trimmed, jsonNull) {
		return true
	}
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// DecodeClientMessage parses one JSON frame. Unknown tags and malformed or
// incomplete bodies fail with ErrInvalidMessage.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var envelope struct {
		Type ClientKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch envelope.Type {
	case KindCreateTransport:
		return decodeInto[CreateTransport](raw)
	case KindConnectTransport:
		return decodeInto[ConnectTransport](raw)
	case KindProduce:
		return decodeInto[Produce](raw)
	case KindRelayProducers:
		return RelayProducers{}, nil
	case KindConsume:
		return decodeInto[Consume](raw)
	case KindProducerOp:
		return decodeInto[ProducerOp](raw)
	case KindConsumerOp:
		return decodeInto[ConsumerOp](raw)
	case KindClose:
		return Close{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, envelope.Type)
	}
}

func decodeInto[T ClientMessage](raw []byte) (ClientMessage, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msg.Kind(), err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, msg.Kind(), err)
	}
	return msg, nil
}
