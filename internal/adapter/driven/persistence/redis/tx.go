package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxTxAttempts = 5

// watchTx runs txf under WATCH on keys and retries when one of them changes
// before EXEC.
func watchTx(ctx context.Context, client goredis.UniversalClient, txf func(*goredis.Tx) error, keys ...string) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = client.Watch(ctx, txf, keys...)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		log.Debug().Strs("keys", keys).Int("attempt", attempt).Msg("Transaction conflicted, retrying")
	}
	return err
}
