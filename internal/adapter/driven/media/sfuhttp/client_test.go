package sfuhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if r.ContentLength > 0 {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&rec.body))
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)
	return client, &calls
}

func TestClientRequests(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/huddles/h1/produce":
			_, _ = w.Write([]byte(`{"id":"prod-1","kind":"audio"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	})
	ctx := context.Background()

	caps, err := client.EnsureSession(ctx, "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(caps))

	_, err = client.CreateTransport(ctx, "h1", "p1", "send")
	require.NoError(t, err)

	require.NoError(t, client.ConnectTransport(ctx, "h1", "p1", "t1", json.RawMessage(`{"role":"client"}`)))

	produced, err := client.Produce(ctx, "h1", "p1", "t1", domain.KindAudio, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "prod-1", produced.ID)
	assert.JSONEq(t, `{"id":"prod-1","kind":"audio"}`, string(produced.Data))

	require.NoError(t, client.ProducerOp(ctx, domain.MediaPause, "prod-1"))
	require.NoError(t, client.ProducerOp(ctx, domain.MediaClose, "prod-1"))
	require.NoError(t, client.ConsumerOp(ctx, domain.MediaResume, "cons-1"))

	got := *calls
	require.Len(t, got, 7)
	assert.Equal(t, "/huddles/h1/ensure", got[0].path)
	assert.Equal(t, "/huddles/h1/transports", got[1].path)
	assert.Equal(t, map[string]any{"peerId": "p1", "direction": "send"}, got[1].body)
	assert.Equal(t, "/transports/t1/connect", got[2].path)
	assert.Equal(t, "h1", got[2].body["hid"])
	assert.Equal(t, "/huddles/h1/produce", got[3].path)
	assert.Equal(t, "audio", got[3].body["kind"])
	assert.Equal(t, recorded{method: http.MethodPost, path: "/producers/prod-1/pause"}, got[4])
	assert.Equal(t, recorded{method: http.MethodDelete, path: "/producers/prod-1"}, got[5])
	assert.Equal(t, recorded{method: http.MethodPost, path: "/consumers/cons-1/resume"}, got[6])
}

func TestClientSessionState(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/huddles/h1/state", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"participants":[{"participantId":"p1","producers":[{"id":"prod-1","kind":"video"}]}]}`))
	})

	state, err := client.SessionState(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.MediaSessionState{
		Participants: []domain.MediaParticipant{{
			ParticipantID: "p1",
			Producers:     []domain.ProducerInfo{{ID: "prod-1", Kind: domain.KindVideo}},
		}},
	}, state)
}

func TestClientPropagatesFailures(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "router exploded", http.StatusBadGateway)
	})

	_, err := client.Consume(context.Background(), "h1", "p1", "t1", "prod-1", json.RawMessage(`{}`))
	require.ErrorIs(t, err, domain.ErrMediaServer)
	assert.Contains(t, err.Error(), "502")
}

func TestClientProduceWithoutID(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Produce(context.Background(), "h1", "p1", "t1", domain.KindVideo, json.RawMessage(`{}`))
	require.ErrorIs(t, err, domain.ErrMediaServer)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("  ", time.Second)
	require.Error(t, err)
}
