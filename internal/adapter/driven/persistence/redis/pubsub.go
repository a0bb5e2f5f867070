package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type stream[T any] struct {
	channel string
	pubsub  *goredis.PubSub
	msgs    <-chan *goredis.Message
}

// subscribe returns once Redis has confirmed the subscription, so anything
// published after it returns is delivered.
func subscribe[T any](ctx context.Context, client goredis.UniversalClient, channel string) (port.Stream[T], error) {
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	log.Debug().Str("channel", channel).Msg("Subscribed")

	return &stream[T]{
		channel: channel,
		pubsub:  ps,
		msgs:    ps.Channel(),
	}, nil
}

func (s *stream[T]) Next(ctx context.Context) (T, error) {
	var evt T
	select {
	case <-ctx.Done():
		return evt, ctx.Err()
	case msg, ok := <-s.msgs:
		if !ok {
			return evt, domain.ErrStreamClosed
		}
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			return evt, fmt.Errorf("decode event on %s: %w", s.channel, err)
		}
		log.Trace().Str("channel", s.channel).Str("payload", msg.Payload).Msg("recv")
		return evt, nil
	}
}

func (s *stream[T]) Close() error {
	return s.pubsub.Close()
}

func publish(ctx context.Context, client goredis.UniversalClient, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", channel, err)
	}
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	log.Trace().Str("channel", channel).RawJSON("payload", data).Msg("pub")
	return nil
}
