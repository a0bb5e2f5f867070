package service

import (
	"slices"
	"testing"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHuddle(t *testing.T, s store, sid domain.SessionID) *Huddle {
	t.Helper()
	h := NewHuddle(sid, s.sessions, s.participants)
	t.Cleanup(func() { _ = h.StopTracking() })
	return h
}

func TestHuddleFollowsMemberEvents(t *testing.T) {
	ctx := testContext(t)
	_, s := newTestStore(t)
	sid := createSession(t, ctx, s)
	h := newTestHuddle(t, s, sid)
	require.NoError(t, h.StartTracking(ctx))

	pid := addParticipant(t, ctx, s, sid)
	require.Eventually(t, func() bool {
		_, ok := h.Participant(pid)
		return ok
	}, waitTimeout, waitTick)

	p, _ := h.Participant(pid)
	assert.False(t, p.IsDirectlyConnected())

	require.NoError(t, s.participants.Delete(ctx, sid, pid))
	require.Eventually(t, func() bool {
		_, ok := h.Participant(pid)
		return !ok
	}, waitTimeout, waitTick)
}

func TestHuddleReconcile(t *testing.T) {
	ctx := testContext(t)
	_, s := newTestStore(t)
	sid := createSession(t, ctx, s)
	first := addParticipant(t, ctx, s, sid)
	second := addParticipant(t, ctx, s, sid)
	h := newTestHuddle(t, s, sid)

	d, err := h.Reconcile(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ParticipantID{first, second}, d.Added)

	d, err = h.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, d.Empty())

	conn := newFakeConn()
	_, err = h.AddLocal("p_stray", conn)
	require.NoError(t, err)

	d, err = h.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"p_stray"}, d.Removed)
	assert.ElementsMatch(t, []domain.ParticipantID{first, second}, h.Members())
	require.Eventually(t, conn.isClosed, waitTimeout, waitTick)
}

func TestHuddleMemberBurstMatchesReconcile(t *testing.T) {
	ctx := testContext(t)
	_, s := newTestStore(t)
	sid := createSession(t, ctx, s)
	h := newTestHuddle(t, s, sid)
	require.NoError(t, h.StartTracking(ctx))

	var kept []domain.ParticipantID
	for i := 0; i < 30; i++ {
		pid := addParticipant(t, ctx, s, sid)
		if i%3 == 0 {
			require.NoError(t, s.participants.Delete(ctx, sid, pid))
			continue
		}
		kept = append(kept, pid)
	}
	slices.Sort(kept)

	require.Eventually(t, func() bool {
		return slices.Equal(kept, h.Members())
	}, waitTimeout, waitTick)

	remote, err := s.participants.ListMembers(ctx, sid)
	require.NoError(t, err)
	slices.Sort(remote)
	assert.Equal(t, kept, remote)

	d, err := h.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, d.Empty(), "reconcile changed %+v", d)
}

func TestHuddleLocalMembership(t *testing.T) {
	_, s := newTestStore(t)
	h := newTestHuddle(t, s, "h_local")

	_, err := h.AddLocal("p_1", nil)
	require.NoError(t, err)
	_, err = h.AddLocal("p_1", nil)
	require.ErrorIs(t, err, domain.ErrParticipantExists)

	require.NoError(t, h.RemoveLocal("p_1"))
	require.ErrorIs(t, h.RemoveLocal("p_1"), domain.ErrParticipantNotFound)
	assert.Empty(t, h.Members())
}

func TestHuddleConnect(t *testing.T) {
	_, s := newTestStore(t)
	h := newTestHuddle(t, s, "h_connect")

	_, err := h.AddLocal("p_1", nil)
	require.NoError(t, err)

	conn := newFakeConn()
	p, err := h.Connect("p_1", conn)
	require.NoError(t, err)
	assert.True(t, p.IsDirectlyConnected())

	_, err = h.Connect("p_1", newFakeConn())
	require.ErrorIs(t, err, domain.ErrAlreadyConnected)

	fresh, err := h.Connect("p_2", newFakeConn())
	require.NoError(t, err)
	assert.True(t, fresh.IsDirectlyConnected())
	assert.Equal(t, []domain.ParticipantID{"p_1", "p_2"}, h.Members())
}

func TestHuddleStartTrackingTwice(t *testing.T) {
	ctx := testContext(t)
	_, s := newTestStore(t)
	h := newTestHuddle(t, s, "h_twice")

	require.NoError(t, h.StartTracking(ctx))
	require.ErrorIs(t, h.StartTracking(ctx), domain.ErrAlreadyTracking)
}

func TestHuddleUnknownMemberOpStopsListener(t *testing.T) {
	ctx := testContext(t)
	_, s := newTestStore(t)
	h := newTestHuddle(t, s, "h_bad")
	require.NoError(t, h.StartTracking(ctx))

	ln := h.listener
	require.NoError(t, s.client.Publish(ctx, "events:huddle:h_bad:members", `{"op":"promote","participant_id":"p_1"}`).Err())
	require.Eventually(t, func() bool { return listenerDone(ln) }, waitTimeout, waitTick)

	require.ErrorIs(t, h.StopTracking(), domain.ErrProtocolViolation)
}
