package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/core/protocol"
	"github.com/Wyydra/huddle/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ControlHandler runs the signaling protocol for one client connection. It
// proxies client requests to the media server and relays session events
// published by handlers on other workers.
type ControlHandler struct {
	huddle      *Huddle
	participant *Participant
	media       port.MediaServer
	log         zerolog.Logger

	mu        sync.Mutex
	state     domain.ControlState
	announced map[string]struct{}

	relay *listener
}

// NewControlHandler subscribes to the session's event channel before
// returning, so every event published afterwards reaches HandleEvent.
func NewControlHandler(ctx context.Context, participant *Participant, media port.MediaServer) (*ControlHandler, error) {
	h := participant.Huddle()
	c := &ControlHandler{
		huddle:      h,
		participant: participant,
		media:       media,
		log: log.With().
			Str("component", "control").
			Str("huddle_id", h.ID().String()).
			Str("participant_id", participant.ID().String()).
			Logger(),
		state:     domain.StateAccepted,
		announced: make(map[string]struct{}),
	}

	stream, err := h.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe to huddle events: %w", err)
	}
	c.relay = startListener(stream, c.HandleEvent, c.log)
	return c, nil
}

func (c *ControlHandler) State() domain.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginHandshake makes sure the session exists on the media server and
// forwards its router capabilities to the client.
func (c *ControlHandler) BeginHandshake(ctx context.Context) error {
	caps, err := c.media.EnsureSession(ctx, c.huddle.ID())
	if err != nil {
		return err
	}
	if err := c.participant.SendMessage(protocol.RouterRtpCapabilities(caps)); err != nil {
		return err
	}
	c.setState(domain.StateHandshakeSent)
	return nil
}

// HandleMessage dispatches one client message. Media server failures are
// reported to the client and leave the connection open. ErrCloseRequested
// signals a normal close; any other error means the connection is unusable.
func (c *ControlHandler) HandleMessage(ctx context.Context, msg protocol.ClientMessage) error {
	metrics.ClientMessages.WithLabelValues(string(msg.Kind())).Inc()
	sid, pid := c.huddle.ID(), c.participant.ID()

	switch m := msg.(type) {
	case protocol.CreateTransport:
		data, err := c.media.CreateTransport(ctx, sid, pid, m.Direction)
		if err != nil {
			return c.fail(m.Kind(), err)
		}
		c.setState(domain.StateAwaitingTransport)
		return c.participant.SendMessage(protocol.TransportCreated(data))

	case protocol.ConnectTransport:
		if m.Empty() {
			return nil
		}
		if err := c.media.ConnectTransport(ctx, sid, pid, m.TransportID, m.DtlsParameters); err != nil {
			return c.fail(m.Kind(), err)
		}
		c.setState(domain.StateTransportConnected)
		ack := protocol.NewAck(m.Kind())
		ack.TransportID = m.TransportID
		return c.participant.SendMessage(ack)

	case protocol.Produce:
		produced, err := c.media.Produce(ctx, sid, pid, m.TransportID, m.MediaKind, m.RtpParameters)
		if err != nil {
			return c.fail(m.Kind(), err)
		}
		if err := c.participant.SendMessage(protocol.Produced(produced.Data)); err != nil {
			return err
		}
		if err := c.huddle.Broadcast(ctx, domain.NewProducerEvent(sid, pid, produced.ID)); err != nil {
			return c.fail(m.Kind(), fmt.Errorf("announce producer: %w", err))
		}
		return nil

	case protocol.RelayProducers:
		c.participant.EnableRelayNewProducers()
		if err := c.participant.SendMessage(protocol.NewAck(m.Kind())); err != nil {
			return err
		}
		return c.announceExisting(ctx)

	case protocol.Consume:
		data, err := c.media.Consume(ctx, sid, pid, m.TransportID, m.ProducerID, m.RtpCapabilities)
		if err != nil {
			return c.fail(m.Kind(), err)
		}
		return c.participant.SendMessage(protocol.Consumed(data))

	case protocol.ProducerOp:
		if err := c.media.ProducerOp(ctx, m.Op, m.ProducerID); err != nil {
			return c.fail(m.Kind(), err)
		}
		ack := protocol.NewAck(m.Kind())
		ack.ProducerID = m.ProducerID
		return c.participant.SendMessage(ack)

	case protocol.ConsumerOp:
		if err := c.media.ConsumerOp(ctx, m.Op, m.ConsumerID); err != nil {
			return c.fail(m.Kind(), err)
		}
		ack := protocol.NewAck(m.Kind())
		ack.ConsumerID = m.ConsumerID
		return c.participant.SendMessage(ack)

	case protocol.Close:
		return domain.ErrCloseRequested

	default:
		return fmt.Errorf("%w: unhandled %T", protocol.ErrInvalidMessage, msg)
	}
}

// HandleEvent reacts to an event published on the session channel. An
// unknown op is a contract violation and stops the relay.
func (c *ControlHandler) HandleEvent(ctx context.Context, evt domain.SessionEvent) error {
	switch evt.Op {
	case domain.SessionEventNewProducer:
		if evt.ParticipantID == c.participant.ID() || !c.participant.RelayNewProducers() {
			return nil
		}
		if err := c.announce(evt.ParticipantID, evt.ProducerID); err != nil {
			c.log.Debug().Err(err).Str("producer_id", evt.ProducerID).Msg("New producer not delivered")
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown huddle event %q", domain.ErrProtocolViolation, evt.Op)
	}
}

// Close stops the event relay. It reports why the relay died if it stopped
// on its own.
func (c *ControlHandler) Close() error {
	return c.relay.stop()
}

// announceExisting sends one notification per producer already present in
// the session, skipping the client's own.
func (c *ControlHandler) announceExisting(ctx context.Context) error {
	state, err := c.media.SessionState(ctx, c.huddle.ID())
	if err != nil {
		return c.fail(protocol.KindRelayProducers, err)
	}
	for _, mp := range state.Participants {
		if mp.ParticipantID == c.participant.ID() {
			continue
		}
		for _, producer := range mp.Producers {
			if err := c.announce(mp.ParticipantID, producer.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// announce forwards a producer to the client at most once per connection.
func (c *ControlHandler) announce(pid domain.ParticipantID, producerID string) error {
	c.mu.Lock()
	if _, seen := c.announced[producerID]; seen {
		c.mu.Unlock()
		return nil
	}
	c.announced[producerID] = struct{}{}
	c.mu.Unlock()

	if err := c.participant.SendMessage(protocol.NewProducerNotice(c.huddle.ID(), pid, producerID)); err != nil {
		return err
	}
	metrics.RelayedProducers.Inc()
	return nil
}

func (c *ControlHandler) fail(op protocol.ClientKind, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.log.Warn().Err(err).Str("op", string(op)).Msg("Control operation failed")
	return c.participant.SendMessage(protocol.NewError(op, err))
}

func (c *ControlHandler) setState(s domain.ControlState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("Control state changed")
	}
}
