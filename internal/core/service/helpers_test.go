package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/huddle/internal/adapter/driven/persistence/redis"
	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/protocol"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testTTL     = time.Hour
	waitTimeout = 2 * time.Second
	waitTick    = 10 * time.Millisecond
)

// store is one worker's view of the shared backend.
type store struct {
	client       *goredis.Client
	sessions     *redis.SessionRepository
	participants *redis.ParticipantRepository
}

func newStore(t *testing.T, mr *miniredis.Miniredis) store {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store{
		client:       client,
		sessions:     redis.NewSessionRepository(client),
		participants: redis.NewParticipantRepository(client),
	}
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, store) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, newStore(t, mr)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createSession(t *testing.T, ctx context.Context, s store) domain.SessionID {
	t.Helper()
	session := domain.NewSession(time.Now(), testTTL)
	require.NoError(t, s.sessions.Create(ctx, session, testTTL))
	return session.ID
}

func addParticipant(t *testing.T, ctx context.Context, s store, sid domain.SessionID) domain.ParticipantID {
	t.Helper()
	p := domain.Participant{ID: domain.NewParticipantID(), Role: domain.RoleGuest}
	require.NoError(t, s.participants.Add(ctx, sid, p))
	return p.ID
}

// fakeConn records every message sent to it. Messages skipped by nextOf
// stay pending for later reads.
type fakeConn struct {
	msgs    chan protocol.ServerMessage
	pending []protocol.ServerMessage

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan protocol.ServerMessage, 64)}
}

func (c *fakeConn) Send(msg any) error {
	c.msgs <- msg.(protocol.ServerMessage)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) next(t *testing.T) protocol.ServerMessage {
	t.Helper()
	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		return msg
	}
	select {
	case msg := <-c.msgs:
		return msg
	case <-time.After(waitTimeout):
		require.FailNow(t, "no message received")
		return nil
	}
}

// nextOf returns the oldest message of kind.
func (c *fakeConn) nextOf(t *testing.T, kind protocol.ServerKind) protocol.ServerMessage {
	t.Helper()
	for i, msg := range c.pending {
		if msg.ServerKind() == kind {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return msg
		}
	}

	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-c.msgs:
			if msg.ServerKind() == kind {
				return msg
			}
			c.pending = append(c.pending, msg)
		case <-deadline:
			require.FailNow(t, "message not received", "kind %s", kind)
			return nil
		}
	}
}

// quiet asserts no message of kind is pending or arrives for a short while.
func (c *fakeConn) quiet(t *testing.T, kind protocol.ServerKind) {
	t.Helper()
	for _, msg := range c.pending {
		require.NotEqual(t, kind, msg.ServerKind(), "unexpected %+v", msg)
	}

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case msg := <-c.msgs:
			require.NotEqual(t, kind, msg.ServerKind(), "unexpected %+v", msg)
			c.pending = append(c.pending, msg)
		case <-deadline:
			return
		}
	}
}

func listenerDone(ln *listener) bool {
	select {
	case <-ln.done:
		return true
	default:
		return false
	}
}
