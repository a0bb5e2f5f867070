package service

import (
	"context"
	"errors"
	"slices"

	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/rs/zerolog"
)

// listener drains one event stream in a background goroutine until it is
// stopped or a handler fails.
type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startListener[T any](stream port.Stream[T], handle func(context.Context, T) error, l zerolog.Logger) *listener {
	ctx, cancel := context.WithCancel(context.Background())
	ln := &listener{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(ln.done)
		defer stream.Close()

		for {
			evt, err := stream.Next(ctx)
			if err == nil {
				err = handle(ctx, evt)
			}
			if err != nil {
				ln.err = err
				break
			}
		}

		if !errors.Is(ln.err, context.Canceled) {
			l.Error().Err(ln.err).Msg("Event listener terminated")
		}
	}()

	return ln
}

// stop cancels the listener and waits for it to exit. Cancellation is not
// reported as an error; anything that made the listener exit earlier is.
func (ln *listener) stop() error {
	ln.cancel()
	<-ln.done
	if errors.Is(ln.err, context.Canceled) {
		return nil
	}
	return ln.err
}

// Diff is the result of reconciling a local cache against the store.
type Diff[K ~string] struct {
	Added   []K
	Removed []K
}

func (d Diff[K]) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

func diff[K ~string](remote []K, local []K) Diff[K] {
	remoteSet := make(map[K]struct{}, len(remote))
	for _, k := range remote {
		remoteSet[k] = struct{}{}
	}
	localSet := make(map[K]struct{}, len(local))
	for _, k := range local {
		localSet[k] = struct{}{}
	}

	var d Diff[K]
	for k := range remoteSet {
		if _, ok := localSet[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	for k := range localSet {
		if _, ok := remoteSet[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	return d
}
