package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	goredis "github.com/redis/go-redis/v9"
)

// PTTL sentinels as reported by go-redis.
const (
	ttlKeyMissing = time.Duration(-2)
	ttlNoExpiry   = time.Duration(-1)
)

// implements port.ParticipantRepository
type ParticipantRepository struct {
	client goredis.UniversalClient
}

func NewParticipantRepository(client goredis.UniversalClient) *ParticipantRepository {
	return &ParticipantRepository{client: client}
}

// Add writes the participant record and indexes it in the session's
// membership set. Both keys take the session's remaining TTL at write time,
// or no expiry if the session has none. The session key is watched so a
// session that disappears mid-write aborts the transaction.
func (r *ParticipantRepository) Add(ctx context.Context, sid domain.SessionID, p domain.Participant) error {
	hkey := sessionKey(sid)
	pkey := participantKey(p.ID)
	skey := membersKey(sid)

	txf := func(tx *goredis.Tx) error {
		ttl, err := tx.PTTL(ctx, hkey).Result()
		if err != nil {
			return err
		}
		if ttl == ttlKeyMissing || (ttl != ttlNoExpiry && ttl <= 0) {
			return domain.ErrSessionNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, pkey, "id", string(p.ID), "role", string(p.Role))
			pipe.SAdd(ctx, skey, string(p.ID))
			if ttl == ttlNoExpiry {
				pipe.Persist(ctx, pkey)
				pipe.Persist(ctx, skey)
			} else {
				pipe.PExpire(ctx, pkey, ttl)
				pipe.PExpire(ctx, skey, ttl)
			}
			return nil
		})
		return err
	}

	err := watchTx(ctx, r.client, txf, hkey)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("add participant %s to %s: %w", p.ID, sid, err)
	}

	return publish(ctx, r.client, membersChannel(sid), domain.MemberEvent{
		Op:            domain.MemberAdd,
		SessionID:     sid,
		ParticipantID: p.ID,
	})
}

func (r *ParticipantRepository) Get(ctx context.Context, pid domain.ParticipantID) (domain.Participant, error) {
	fields, err := r.client.HGetAll(ctx, participantKey(pid)).Result()
	if err != nil {
		return domain.Participant{}, fmt.Errorf("get participant %s: %w", pid, err)
	}
	if len(fields) == 0 {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}

	role, err := domain.ParseRole(fields["role"])
	if err != nil {
		return domain.Participant{}, fmt.Errorf("decode participant %s: %w", pid, err)
	}
	id := fields["id"]
	if id == "" {
		id = string(pid)
	}
	return domain.Participant{ID: domain.ParticipantID(id), Role: role}, nil
}

func (r *ParticipantRepository) Delete(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, participantKey(pid))
		pipe.SRem(ctx, membersKey(sid), string(pid))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete participant %s from %s: %w", pid, sid, err)
	}

	return publish(ctx, r.client, membersChannel(sid), domain.MemberEvent{
		Op:            domain.MemberRemove,
		SessionID:     sid,
		ParticipantID: pid,
	})
}

func (r *ParticipantRepository) ListMembers(ctx context.Context, sid domain.SessionID) ([]domain.ParticipantID, error) {
	members, err := r.client.SMembers(ctx, membersKey(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", sid, err)
	}
	ids := make([]domain.ParticipantID, 0, len(members))
	for _, m := range members {
		ids = append(ids, domain.ParticipantID(m))
	}
	return ids, nil
}

func (r *ParticipantRepository) MemberEvents(ctx context.Context, sid domain.SessionID) (port.Stream[domain.MemberEvent], error) {
	return subscribe[domain.MemberEvent](ctx, r.client, membersChannel(sid))
}
