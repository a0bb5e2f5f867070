package protocol

import (
	"encoding/json"
	"testing"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want ClientMessage
	}{
		{
			name: "create transport without direction",
			raw:  `{"type":"createTransport"}`,
			want: CreateTransport{},
		},
		{
			name: "create transport send",
			raw:  `{"type":"createTransport","direction":"send"}`,
			want: CreateTransport{Direction: "send"},
		},
		{
			name: "connect transport with empty fields",
			raw:  `{"type":"connectTransport"}`,
			want: ConnectTransport{},
		},
		{
			name: "connect transport with null parameters",
			raw:  `{"type":"connectTransport","transportId":"t1","dtlsParameters":null}`,
			want: ConnectTransport{TransportID: "t1", DtlsParameters: json.RawMessage(`null`)},
		},
		{
			name: "relay producers",
			raw:  `{"type":"relayProducers"}`,
			want: RelayProducers{},
		},
		{
			name: "producer op",
			raw:  `{"type":"producerOp","op":"pause","producerId":"prod-1"}`,
			want: ProducerOp{Op: domain.MediaPause, ProducerID: "prod-1"},
		},
		{
			name: "consumer op",
			raw:  `{"type":"consumerOp","op":"close","consumerId":"cons-1"}`,
			want: ConsumerOp{Op: domain.MediaClose, ConsumerID: "cons-1"},
		},
		{
			name: "close",
			raw:  `{"type":"close"}`,
			want: Close{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeClientMessageKeepsRawPayloads(t *testing.T) {
	raw := `{"type":"produce","transportId":"t1","kind":"video","rtpParameters":{"codecs":[]}}`

	msg, err := DecodeClientMessage([]byte(raw))
	require.NoError(t, err)

	produce, ok := msg.(Produce)
	require.True(t, ok)
	assert.Equal(t, "t1", produce.TransportID)
	assert.Equal(t, domain.KindVideo, produce.MediaKind)
	assert.JSONEq(t, `{"codecs":[]}`, string(produce.RtpParameters))
}

func TestDecodeClientMessageRejects(t *testing.T) {
	cases := map[string]string{
		"not json":             `hello`,
		"missing type":         `{"direction":"send"}`,
		"unknown type":         `{"type":"teleport"}`,
		"bad direction":        `{"type":"createTransport","direction":"sideways"}`,
		"produce without kind": `{"type":"produce","transportId":"t1","rtpParameters":{}}`,
		"produce bad kind":     `{"type":"produce","transportId":"t1","kind":"smell","rtpParameters":{}}`,
		"produce null rtp":     `{"type":"produce","transportId":"t1","kind":"audio","rtpParameters":null}`,
		"produce string rtp":   `{"type":"produce","transportId":"t1","kind":"audio","rtpParameters":"oops"}`,
		"consume without caps": `{"type":"consume","transportId":"t1","producerId":"p"}`,
		"consume number caps":  `{"type":"consume","transportId":"t1","producerId":"p","rtpCapabilities":42}`,
		"connect array dtls":   `{"type":"connectTransport","transportId":"t1","dtlsParameters":[1,2]}`,
		"producer op bad op":   `{"type":"producerOp","op":"explode","producerId":"p"}`,
		"consumer op no id":    `{"type":"consumerOp","op":"pause"}`,
		"wrong field type":     `{"type":"produce","transportId":7,"kind":"audio","rtpParameters":{}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(raw))
			require.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func TestServerMessagesCarryType(t *testing.T) {
	out, err := json.Marshal(NewProducerNotice("h_1", "p_1", "prod-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"newProducer","huddleId":"h_1","participantId":"p_1","producerId":"prod-1"}`, string(out))

	ack := NewAck(KindConnectTransport)
	ack.TransportID = "t1"
	out, err = json.Marshal(ack)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","op":"connectTransport","transportId":"t1"}`, string(out))

	out, err = json.Marshal(TransportCreated(json.RawMessage(`{"id":"t1"}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"transportCreated","data":{"id":"t1"}}`, string(out))
}

func TestConnectTransportEmpty(t *testing.T) {
	cases := []struct {
		name string
		msg  ConnectTransport
		want bool
	}{
		{"no transport", ConnectTransport{DtlsParameters: json.RawMessage(`{"role":"client"}`)}, true},
		{"absent parameters", ConnectTransport{TransportID: "t1"}, true},
		{"null parameters", ConnectTransport{TransportID: "t1", DtlsParameters: json.RawMessage(`null`)}, true},
		{"empty object", ConnectTransport{TransportID: "t1", DtlsParameters: json.RawMessage(` {} `)}, true},
		{"parameters", ConnectTransport{TransportID: "t1", DtlsParameters: json.RawMessage(`{"role":"client"}`)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.msg.Empty())
		})
	}
}
