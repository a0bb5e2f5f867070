package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Huddle is this worker's mirror of one session's membership. The store is
// the ground truth; the mirror follows it through membership events and can
// always be rebuilt with Reconcile.
type Huddle struct {
	id           domain.SessionID
	sessions     port.SessionRepository
	participants port.ParticipantRepository
	log          zerolog.Logger

	// syncMu serializes every path that mutates members.
	syncMu   sync.Mutex
	listener *listener

	mu      sync.RWMutex
	members map[domain.ParticipantID]*Participant
}

func NewHuddle(id domain.SessionID, sessions port.SessionRepository, participants port.ParticipantRepository) *Huddle {
	return &Huddle{
		id:           id,
		sessions:     sessions,
		participants: participants,
		log:          log.With().Str("component", "huddle").Str("huddle_id", id.String()).Logger(),
		members:      make(map[domain.ParticipantID]*Participant),
	}
}

func (h *Huddle) ID() domain.SessionID {
	return h.id
}

func (h *Huddle) StartTracking(ctx context.Context) error {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	if h.listener != nil {
		return domain.ErrAlreadyTracking
	}
	stream, err := h.participants.MemberEvents(ctx, h.id)
	if err != nil {
		return fmt.Errorf("track members of %s: %w", h.id, err)
	}
	h.listener = startListener(stream, h.handleMemberEvent, h.log)
	return nil
}

func (h *Huddle) StopTracking() error {
	h.syncMu.Lock()
	ln := h.listener
	h.listener = nil
	h.syncMu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.stop()
}

// Reconcile brings the local members in line with the store's membership set.
func (h *Huddle) Reconcile(ctx context.Context) (Diff[domain.ParticipantID], error) {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	remote, err := h.participants.ListMembers(ctx, h.id)
	if err != nil {
		return Diff[domain.ParticipantID]{}, err
	}

	d := diff(remote, h.Members())
	for _, pid := range d.Added {
		h.addLocked(pid, nil)
	}
	for _, pid := range d.Removed {
		h.removeLocked(pid)
	}

	if !d.Empty() {
		metrics.ReconcileMutations.WithLabelValues("huddle", "added").Add(float64(len(d.Added)))
		metrics.ReconcileMutations.WithLabelValues("huddle", "removed").Add(float64(len(d.Removed)))
		h.log.Info().
			Int("added", len(d.Added)).
			Int("removed", len(d.Removed)).
			Msg("Reconciled members")
	}
	return d, nil
}

// AddLocal creates a handle without touching the store.
func (h *Huddle) AddLocal(pid domain.ParticipantID, conn port.Conn) (*Participant, error) {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	if _, ok := h.Participant(pid); ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrParticipantExists, pid)
	}
	return h.addLocked(pid, conn), nil
}

// RemoveLocal drops the handle at once; its connection is closed in the
// background.
func (h *Huddle) RemoveLocal(pid domain.ParticipantID) error {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	if _, ok := h.Participant(pid); !ok {
		return fmt.Errorf("%w: %s", domain.ErrParticipantNotFound, pid)
	}
	h.removeLocked(pid)
	return nil
}

// Connect attaches a live connection to pid's handle, creating the handle
// if the membership event has not arrived yet.
func (h *Huddle) Connect(pid domain.ParticipantID, conn port.Conn) (*Participant, error) {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	if p, ok := h.Participant(pid); ok {
		if err := p.attach(conn); err != nil {
			return nil, err
		}
		return p, nil
	}
	return h.addLocked(pid, conn), nil
}

func (h *Huddle) Participant(pid domain.ParticipantID) (*Participant, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.members[pid]
	return p, ok
}

// Members returns the ids of the local handles in sorted order.
func (h *Huddle) Members() []domain.ParticipantID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]domain.ParticipantID, 0, len(h.members))
	for id := range h.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Broadcast publishes evt to every worker subscribed to this session.
func (h *Huddle) Broadcast(ctx context.Context, evt domain.SessionEvent) error {
	return h.sessions.PublishSessionEvent(ctx, h.id, evt)
}

func (h *Huddle) Events(ctx context.Context) (port.Stream[domain.SessionEvent], error) {
	return h.sessions.SessionEvents(ctx, h.id)
}

// DisconnectAll closes every live connection held for this session.
func (h *Huddle) DisconnectAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.members {
		if p.IsDirectlyConnected() {
			h.disconnectAsync(p)
		}
	}
}

func (h *Huddle) handleMemberEvent(ctx context.Context, evt domain.MemberEvent) error {
	switch evt.Op {
	case domain.MemberAdd, domain.MemberRemove:
	default:
		return fmt.Errorf("%w: unknown member event %q", domain.ErrProtocolViolation, evt.Op)
	}
	metrics.MemberEvents.WithLabelValues(string(evt.Op)).Inc()
	if evt.ParticipantID == "" {
		return nil
	}

	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	_, known := h.Participant(evt.ParticipantID)
	switch {
	case evt.Op == domain.MemberAdd && !known:
		h.addLocked(evt.ParticipantID, nil)
	case evt.Op == domain.MemberRemove && known:
		h.removeLocked(evt.ParticipantID)
	}
	return nil
}

func (h *Huddle) addLocked(pid domain.ParticipantID, conn port.Conn) *Participant {
	p := newParticipant(pid, h, conn)
	h.mu.Lock()
	h.members[pid] = p
	h.mu.Unlock()
	h.log.Debug().Str("participant_id", pid.String()).Bool("direct", conn != nil).Msg("Participant added")
	return p
}

func (h *Huddle) removeLocked(pid domain.ParticipantID) {
	h.mu.Lock()
	p, ok := h.members[pid]
	delete(h.members, pid)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.log.Debug().Str("participant_id", pid.String()).Msg("Participant removed")
	h.disconnectAsync(p)
}

func (h *Huddle) disconnectAsync(p *Participant) {
	go func() {
		if err := p.Disconnect(); err != nil {
			h.log.Debug().Err(err).Str("participant_id", p.ID().String()).Msg("Disconnect failed")
		}
	}()
}
