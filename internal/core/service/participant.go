package service

import (
	"sync"
	"sync/atomic"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/core/protocol"
)

// Participant is the local handle of one session member. It holds a live
// connection only when the member is connected to this worker.
type Participant struct {
	id     domain.ParticipantID
	huddle *Huddle

	mu   sync.RWMutex
	conn port.Conn

	relayNewProducers atomic.Bool
}

func newParticipant(id domain.ParticipantID, huddle *Huddle, conn port.Conn) *Participant {
	return &Participant{id: id, huddle: huddle, conn: conn}
}

func (p *Participant) ID() domain.ParticipantID {
	return p.id
}

func (p *Participant) Huddle() *Huddle {
	return p.huddle
}

func (p *Participant) IsDirectlyConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn != nil
}

// SendMessage delivers msg over the live connection. Delivery to members on
// other workers is never implicit.
func (p *Participant) SendMessage(msg protocol.ServerMessage) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn == nil {
		return domain.ErrNotDirectlyConnected
	}
	return conn.Send(msg)
}

// Disconnect closes the live connection, leaving a remote-only placeholder.
func (p *Participant) Disconnect() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	p.relayNewProducers.Store(false)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Detach clears conn without closing it, if it is still the live one.
func (p *Participant) Detach(conn port.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn = nil
		p.relayNewProducers.Store(false)
	}
}

func (p *Participant) RelayNewProducers() bool {
	return p.relayNewProducers.Load()
}

func (p *Participant) EnableRelayNewProducers() {
	p.relayNewProducers.Store(true)
}

func (p *Participant) attach(conn port.Conn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return domain.ErrAlreadyConnected
	}
	p.conn = conn
	return nil
}
