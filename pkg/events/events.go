// Package events fans atom lifecycle notifications out to registered hooks:
// persisted writes, accepted remote merges, and rejected (stale or tied)
// remote states. Hooks observe persistence and reconciliation without
// touching entry internals.
package events

import (
	"errors"
	"strings"
	"time"
)

// Kind labels the lifecycle occurrence an Event describes.
type Kind string

const (
	// KindWrite marks a debounced write flushed to storage.
	KindWrite Kind = "write"
	// KindSyncAccept marks a remote state applied by the merge algorithm.
	KindSyncAccept Kind = "sync-accept"
	// KindSyncReject marks a remote state discarded by the merge algorithm.
	KindSyncReject Kind = "sync-reject"
)

// Event describes one lifecycle occurrence for one atom key.
type Event struct {
	Kind       Kind
	Key        string
	Version    uint64
	OriginID   string
	OccurredAt time.Time
}

// Hook receives normalized lifecycle events.
type Hook interface {
	Notify(event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(event Event) error {
	if fn == nil {
		return nil
	}
	return fn(event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to all hooks, returning a joined error if any
// fail. Events without a kind or key are dropped.
func (h Hooks) Notify(event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := Normalize(event)
	if normalized.Kind == "" || normalized.Key == "" {
		return nil
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Normalize trims identifiers and ensures a timestamp is present.
func Normalize(event Event) Event {
	normalized := event
	normalized.Key = strings.TrimSpace(event.Key)
	normalized.OriginID = strings.TrimSpace(event.OriginID)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}
