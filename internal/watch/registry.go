// Package watch owns the single live event subscription and keeps it in step
// with the watch list. The watch list changes at admin cadence while posts
// arrive continuously, so the registry rebuilds the whole subscription on
// every change instead of patching it incrementally.
package watch

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handle identifies one live subscription held with the event source.
type Handle interface {
	Sources() []string
}

// EventSource is the transport-side subscription surface.
type EventSource interface {
	Subscribe(sources []string) (Handle, error)
	Unsubscribe(h Handle)
}

// Registry holds at most one active subscription at any time.
type Registry struct {
	mu     sync.Mutex
	events EventSource
	active Handle
}

func New(events EventSource) *Registry {
	return &Registry{events: events}
}

// Resynchronize replaces the active subscription with one scoped to exactly
// watchList. Idempotent; an empty list leaves no subscription and no error.
// The old subscription is torn down first and delivers nothing afterwards,
// so a failed install leaves zero active sources rather than a stale set.
// The caller retries implicitly on the next successful mutation.
func (r *Registry) Resynchronize(watchList []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.events.Unsubscribe(r.active)
		r.active = nil
	}
	if len(watchList) == 0 {
		return nil
	}

	h, err := r.events.Subscribe(watchList)
	if err != nil {
		slog.Warn("subscription install failed, watching nothing", "sources", len(watchList), "err", err)
		return fmt.Errorf("install subscription: %w", err)
	}
	r.active = h
	return nil
}

// ActiveSources returns the source set of the live subscription, nil when
// there is none.
func (r *Registry) ActiveSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.Sources()
}

// Close tears down the active subscription, if any.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		r.events.Unsubscribe(r.active)
		r.active = nil
	}
}
