package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	goredis "github.com/redis/go-redis/v9"
)

const scanCount = 100

// implements port.SessionRepository
type SessionRepository struct {
	client goredis.UniversalClient
}

func NewSessionRepository(client goredis.UniversalClient) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create is a best-effort SET NX: a colliding id silently keeps the existing
// record. The "add" event is published either way; consumers treat it as
// idempotent.
func (r *SessionRepository) Create(ctx context.Context, s domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.SetNX(ctx, sessionKey(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return publish(ctx, r.client, lifecycleChannel, domain.LifecycleEvent{
		Op:        domain.LifecycleAdd,
		SessionID: s.ID,
	})
}

func (r *SessionRepository) Get(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}

	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

// Delete removes the session together with its membership set and the
// member participant records.
func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	skey := sessionKey(id)
	mkey := membersKey(id)

	// A participant added concurrently touches both watched keys, so the
	// member list read here is the one that gets deleted.
	txf := func(tx *goredis.Tx) error {
		members, err := tx.SMembers(ctx, mkey).Result()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(members)+2)
		keys = append(keys, skey, mkey)
		for _, pid := range members {
			keys = append(keys, participantKey(domain.ParticipantID(pid)))
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			return nil
		})
		return err
	}
	if err := watchTx(ctx, r.client, txf, skey, mkey); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	return publish(ctx, r.client, lifecycleChannel, domain.LifecycleEvent{
		Op:        domain.LifecycleRemove,
		SessionID: id,
	})
}

func (r *SessionRepository) ListIDs(ctx context.Context) ([]domain.SessionID, error) {
	var ids []domain.SessionID
	iter := r.client.Scan(ctx, 0, sessionKeyPattern, scanCount).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), sessionKeyPrefix)
		if id == "" {
			continue
		}
		ids = append(ids, domain.SessionID(id))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

func (r *SessionRepository) LifecycleEvents(ctx context.Context) (port.Stream[domain.LifecycleEvent], error) {
	return subscribe[domain.LifecycleEvent](ctx, r.client, lifecycleChannel)
}

func (r *SessionRepository) SessionEvents(ctx context.Context, id domain.SessionID) (port.Stream[domain.SessionEvent], error) {
	return subscribe[domain.SessionEvent](ctx, r.client, sessionChannel(id))
}

func (r *SessionRepository) PublishSessionEvent(ctx context.Context, id domain.SessionID, evt domain.SessionEvent) error {
	return publish(ctx, r.client, sessionChannel(id), evt)
}
