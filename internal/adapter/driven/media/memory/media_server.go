// Package memory is an in-process stand-in for the media-routing server. It
// keeps just enough bookkeeping to answer the control plane's calls and is
// used for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/google/uuid"
)

var routerCapabilities = json.RawMessage(`{"codecs":[` +
	`{"kind":"audio","mimeType":"audio/opus","clockRate":48000,"channels":2},` +
	`{"kind":"video","mimeType":"video/VP8","clockRate":90000}],"headerExtensions":[]}`)

type producer struct {
	id     string
	owner  domain.ParticipantID
	kind   domain.MediaKind
	paused bool
	order  int
}

type session struct {
	transports map[string]domain.ParticipantID
	producers  map[string]*producer
}

// implements port.MediaServer
type MediaServer struct {
	mu        sync.Mutex
	sessions  map[domain.SessionID]*session
	producers map[string]domain.SessionID
	consumers map[string]bool
	seq       int
}

func NewMediaServer() *MediaServer {
	return &MediaServer{
		sessions:  make(map[domain.SessionID]*session),
		producers: make(map[string]domain.SessionID),
		consumers: make(map[string]bool),
	}
}

func (m *MediaServer) EnsureSession(ctx context.Context, sid domain.SessionID) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(sid)
	return routerCapabilities, nil
}

func (m *MediaServer) CreateTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, direction string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.ensureLocked(sid)
	id := "tr_" + uuid.NewString()
	s.transports[id] = pid

	return json.Marshal(map[string]any{
		"id":             id,
		"direction":      direction,
		"iceParameters":  map[string]any{},
		"iceCandidates":  []any{},
		"dtlsParameters": map[string]any{},
	})
}

func (m *MediaServer) ConnectTransport(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, dtlsParameters json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.transportLocked(sid, pid, transportID)
	return err
}

func (m *MediaServer) Produce(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID string, kind domain.MediaKind, rtpParameters json.RawMessage) (domain.Produced, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.transportLocked(sid, pid, transportID)
	if err != nil {
		return domain.Produced{}, err
	}

	m.seq++
	p := &producer{id: "pr_" + uuid.NewString(), owner: pid, kind: kind, order: m.seq}
	s.producers[p.id] = p
	m.producers[p.id] = sid

	data, err := json.Marshal(map[string]any{"id": p.id, "kind": kind})
	if err != nil {
		return domain.Produced{}, err
	}
	return domain.Produced{ID: p.id, Data: data}, nil
}

func (m *MediaServer) Consume(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, transportID, producerID string, rtpCapabilities json.RawMessage) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.transportLocked(sid, pid, transportID)
	if err != nil {
		return nil, err
	}
	p, ok := s.producers[producerID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown producer %s", domain.ErrMediaServer, producerID)
	}

	id := "co_" + uuid.NewString()
	m.consumers[id] = true
	return json.Marshal(map[string]any{
		"id":            id,
		"producerId":    p.id,
		"kind":          p.kind,
		"rtpParameters": map[string]any{},
	})
}

func (m *MediaServer) ProducerOp(ctx context.Context, op domain.MediaOp, producerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.producers[producerID]
	if !ok {
		return fmt.Errorf("%w: unknown producer %s", domain.ErrMediaServer, producerID)
	}
	s := m.sessions[sid]
	switch op {
	case domain.MediaPause:
		s.producers[producerID].paused = true
	case domain.MediaResume:
		s.producers[producerID].paused = false
	case domain.MediaClose:
		delete(s.producers, producerID)
		delete(m.producers, producerID)
	default:
		return fmt.Errorf("%w: unknown producer op %q", domain.ErrMediaServer, op)
	}
	return nil
}

func (m *MediaServer) ConsumerOp(ctx context.Context, op domain.MediaOp, consumerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.consumers[consumerID] {
		return fmt.Errorf("%w: unknown consumer %s", domain.ErrMediaServer, consumerID)
	}
	if op == domain.MediaClose {
		delete(m.consumers, consumerID)
	}
	return nil
}

func (m *MediaServer) SessionState(ctx context.Context, sid domain.SessionID) (domain.MediaSessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sid]
	if !ok {
		return domain.MediaSessionState{}, nil
	}

	ordered := make([]*producer, 0, len(s.producers))
	for _, p := range s.producers {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	var state domain.MediaSessionState
	index := make(map[domain.ParticipantID]int)
	for _, p := range ordered {
		i, ok := index[p.owner]
		if !ok {
			i = len(state.Participants)
			index[p.owner] = i
			state.Participants = append(state.Participants, domain.MediaParticipant{ParticipantID: p.owner})
		}
		state.Participants[i].Producers = append(state.Participants[i].Producers, domain.ProducerInfo{ID: p.id, Kind: p.kind})
	}
	return state, nil
}

func (m *MediaServer) ensureLocked(sid domain.SessionID) *session {
	s, ok := m.sessions[sid]
	if !ok {
		s = &session{
			transports: make(map[string]domain.ParticipantID),
			producers:  make(map[string]*producer),
		}
		m.sessions[sid] = s
	}
	return s
}

func (m *MediaServer) transportLocked(sid domain.SessionID, pid domain.ParticipantID, transportID string) (*session, error) {
	s, ok := m.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown huddle %s", domain.ErrMediaServer, sid)
	}
	owner, ok := s.transports[transportID]
	if !ok || owner != pid {
		return nil, fmt.Errorf("%w: unknown transport %s", domain.ErrMediaServer, transportID)
	}
	return s, nil
}
