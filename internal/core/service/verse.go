package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Verse is the process-wide registry of session mirrors. It follows the
// global lifecycle channel and can be rebuilt from the store at any time.
type Verse struct {
	sessions     port.SessionRepository
	participants port.ParticipantRepository
	log          zerolog.Logger

	// syncMu serializes every path that mutates huddles.
	syncMu   sync.Mutex
	listener *listener

	mu      sync.RWMutex
	huddles map[domain.SessionID]*Huddle
}

func NewVerse(sessions port.SessionRepository, participants port.ParticipantRepository) *Verse {
	return &Verse{
		sessions:     sessions,
		participants: participants,
		log:          log.With().Str("component", "verse").Logger(),
		huddles:      make(map[domain.SessionID]*Huddle),
	}
}

func (v *Verse) StartTracking(ctx context.Context) error {
	v.syncMu.Lock()
	defer v.syncMu.Unlock()

	if v.listener != nil {
		return domain.ErrAlreadyTracking
	}
	stream, err := v.sessions.LifecycleEvents(ctx)
	if err != nil {
		return fmt.Errorf("track huddles: %w", err)
	}
	v.listener = startListener(stream, v.handleLifecycleEvent, v.log)
	v.log.Info().Msg("Tracking huddles")
	return nil
}

func (v *Verse) StopTracking() error {
	v.syncMu.Lock()
	ln := v.listener
	v.listener = nil
	v.syncMu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.stop()
}

// Close stops tracking and tears down every local mirror.
func (v *Verse) Close() error {
	errs := []error{v.StopTracking()}

	v.syncMu.Lock()
	defer v.syncMu.Unlock()
	for _, id := range v.IDs() {
		errs = append(errs, v.dropLocked(id))
	}
	return errors.Join(errs...)
}

// Reconcile brings the set of local mirrors in line with the sessions in
// the store. It is idempotent and safe to call at any time.
func (v *Verse) Reconcile(ctx context.Context) (Diff[domain.SessionID], error) {
	v.syncMu.Lock()
	defer v.syncMu.Unlock()

	remote, err := v.sessions.ListIDs(ctx)
	if err != nil {
		return Diff[domain.SessionID]{}, err
	}

	d := diff(remote, v.IDs())
	var errs []error
	for _, id := range d.Added {
		if _, err := v.createLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range d.Removed {
		if err := v.dropLocked(id); err != nil {
			errs = append(errs, err)
		}
	}

	if !d.Empty() {
		metrics.ReconcileMutations.WithLabelValues("verse", "added").Add(float64(len(d.Added)))
		metrics.ReconcileMutations.WithLabelValues("verse", "removed").Add(float64(len(d.Removed)))
		v.log.Info().
			Int("added", len(d.Added)).
			Int("removed", len(d.Removed)).
			Msg("Reconciled huddles")
	}
	return d, errors.Join(errs...)
}

// ReconcileAll reconciles the registry and then the membership of every
// mirror it keeps.
func (v *Verse) ReconcileAll(ctx context.Context) error {
	_, err := v.Reconcile(ctx)
	errs := []error{err}
	for _, id := range v.IDs() {
		if h, ok := v.Get(id); ok {
			_, err := h.Reconcile(ctx)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunReconciler calls ReconcileAll every interval until ctx is done.
func (v *Verse) RunReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.ReconcileAll(ctx); err != nil {
				v.log.Warn().Err(err).Msg("Periodic reconcile failed")
			}
		}
	}
}

func (v *Verse) Get(id domain.SessionID) (*Huddle, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.huddles[id]
	return h, ok
}

// Resolve returns the local mirror for id, creating it when the session
// exists in the store but its lifecycle event has not arrived yet.
func (v *Verse) Resolve(ctx context.Context, id domain.SessionID) (*Huddle, error) {
	if h, ok := v.Get(id); ok {
		return h, nil
	}
	if _, err := v.sessions.Get(ctx, id); err != nil {
		return nil, err
	}

	v.syncMu.Lock()
	defer v.syncMu.Unlock()
	if h, ok := v.Get(id); ok {
		return h, nil
	}
	return v.createLocked(ctx, id)
}

// IDs returns the ids of the local mirrors in sorted order.
func (v *Verse) IDs() []domain.SessionID {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ids := make([]domain.SessionID, 0, len(v.huddles))
	for id := range v.huddles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (v *Verse) handleLifecycleEvent(ctx context.Context, evt domain.LifecycleEvent) error {
	switch evt.Op {
	case domain.LifecycleAdd, domain.LifecycleRemove:
	default:
		return fmt.Errorf("%w: unknown lifecycle event %q", domain.ErrProtocolViolation, evt.Op)
	}
	metrics.LifecycleEvents.WithLabelValues(string(evt.Op)).Inc()
	if evt.SessionID == "" {
		return nil
	}

	v.syncMu.Lock()
	defer v.syncMu.Unlock()

	_, known := v.Get(evt.SessionID)
	switch {
	case evt.Op == domain.LifecycleAdd && !known:
		// store failures here are repaired by the next reconcile
		if _, err := v.createLocked(ctx, evt.SessionID); err != nil {
			v.log.Error().Err(err).Str("huddle_id", evt.SessionID.String()).Msg("Failed to mirror huddle")
		}
	case evt.Op == domain.LifecycleRemove && known:
		if err := v.dropLocked(evt.SessionID); err != nil {
			v.log.Error().Err(err).Str("huddle_id", evt.SessionID.String()).Msg("Huddle listener failed")
		}
	}
	return nil
}

// createLocked subscribes to membership before taking the snapshot so no
// change between the two is lost.
func (v *Verse) createLocked(ctx context.Context, id domain.SessionID) (*Huddle, error) {
	h := NewHuddle(id, v.sessions, v.participants)
	if err := h.StartTracking(ctx); err != nil {
		return nil, err
	}
	if _, err := h.Reconcile(ctx); err != nil {
		_ = h.StopTracking()
		return nil, fmt.Errorf("load members of %s: %w", id, err)
	}

	v.mu.Lock()
	v.huddles[id] = h
	v.mu.Unlock()

	metrics.LocalHuddles.Inc()
	v.log.Info().Str("huddle_id", id.String()).Msg("Huddle mirrored")
	return h, nil
}

func (v *Verse) dropLocked(id domain.SessionID) error {
	v.mu.Lock()
	h, ok := v.huddles[id]
	delete(v.huddles, id)
	v.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.LocalHuddles.Dec()
	err := h.StopTracking()
	h.DisconnectAll()
	v.log.Info().Str("huddle_id", id.String()).Msg("Huddle dropped")
	return err
}
