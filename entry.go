package atoms

import (
	"encoding/json"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-atoms/pkg/debounce"
	"github.com/goliatone/go-atoms/pkg/events"
)

// Config identifies one atom: a key unique within its storage namespace plus
// the value used when nothing valid is persisted yet. Immutable once an entry
// exists for the key.
type Config[T any] struct {
	Key          string
	DefaultValue T
}

// Entry owns one atom: its reactive value cell, version counter, reference
// count, and persistence wiring. Entries are created lazily by a Manager and
// reused across repeated mount/unmount cycles.
//
// The write path increments the version before attempting the storage write
// and does not roll back on failure: repeated write failures let the local
// version drift ahead of what is persisted, and the next successful write
// carries the higher version. This is an eventual-consistency property, not
// a bug to compensate for locally.
type Entry[T any] struct {
	key          string
	storage      Storage
	persistent   bool
	defaultValue T
	signal       *Signal[T]
	originID     string
	originOrder  func(a, b string) int
	logger       Logger
	hooks        events.Hooks
	wait         time.Duration

	mu          sync.Mutex
	version     uint64
	refCount    int
	writer      *debounce.Debouncer[T]
	unsubscribe func()

	applyingRemote atomic.Bool
}

type entrySettings[T any] struct {
	override    *T
	persistent  bool
	originID    string
	originOrder func(a, b string) int
	logger      Logger
	hooks       events.Hooks
	wait        time.Duration
}

// newEntry resolves the initial value in priority order: explicit override,
// then (when persistent) the parsed stored value, then the configured
// default. A valid stored record restores the version even when an override
// value is supplied; read or parse failures fall back to the default with
// version 0.
func newEntry[T any](cfg Config[T], storage Storage, settings entrySettings[T]) *Entry[T] {
	entry := &Entry[T]{
		key:          cfg.Key,
		storage:      storage,
		persistent:   settings.persistent,
		defaultValue: cfg.DefaultValue,
		originID:     settings.originID,
		originOrder:  settings.originOrder,
		logger:       settings.logger,
		hooks:        settings.hooks,
		wait:         settings.wait,
	}

	value := cfg.DefaultValue
	if settings.override != nil {
		value = *settings.override
	}

	if settings.persistent && storage != nil {
		if raw, ok := storage.GetItem(cfg.Key); ok {
			if stored, err := ParseRemoteState(raw); err != nil {
				entry.logger.Warn("discarding unreadable stored state", "key", cfg.Key, "error", err)
			} else {
				entry.version = stored.Version
				if settings.override == nil {
					var decoded T
					if err := json.Unmarshal(stored.Value, &decoded); err != nil {
						entry.logger.Warn("discarding stored value of wrong shape", "key", cfg.Key, "error", err)
						entry.version = 0
					} else {
						value = decoded
					}
				}
			}
		}
	}

	entry.signal = NewSignal(value)
	return entry
}

// Signal returns the entry's reactive value cell.
func (e *Entry[T]) Signal() *Signal[T] {
	if e == nil || e.signal == nil {
		panic(ErrNotInitialized)
	}
	return e.signal
}

// Get returns the current value.
func (e *Entry[T]) Get() T { return e.Signal().Get() }

// Set replaces the current value, scheduling a debounced write while mounted.
func (e *Entry[T]) Set(value T) { e.Signal().Set(value) }

// Key returns the atom key.
func (e *Entry[T]) Key() string { return e.key }

// Version returns the current local version counter.
func (e *Entry[T]) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Mounted reports whether the persistence effect is active.
func (e *Entry[T]) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refCount > 0
}

// Mount registers one consumer. The first mount activates persistence: a
// subscription on the value cell feeding a trailing-only debounced writer.
func (e *Entry[T]) Mount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refCount++
	if e.refCount != 1 || !e.persistent || e.storage == nil {
		return
	}
	writer := debounce.New(e.persist, e.wait)
	e.writer = writer
	e.unsubscribe = e.signal.Subscribe(func(value T) {
		if e.applyingRemote.Load() {
			return
		}
		writer.Call(value)
	})
}

// Unmount releases one consumer. The last unmount flushes any pending write,
// then tears the persistence effect down. The entry stays registered and is
// reusable.
func (e *Entry[T]) Unmount() {
	e.mu.Lock()
	if e.refCount > 0 {
		e.refCount--
	}
	if e.refCount > 0 || e.writer == nil {
		e.mu.Unlock()
		return
	}
	writer, unsubscribe := e.writer, e.unsubscribe
	e.writer, e.unsubscribe = nil, nil
	e.mu.Unlock()

	writer.Flush()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Flush forces any pending debounced write out immediately. Available in any
// state.
func (e *Entry[T]) Flush() {
	e.mu.Lock()
	writer := e.writer
	e.mu.Unlock()
	if writer != nil {
		writer.Flush()
	}
}

// Dispose forces the reference count to zero: flush, then tear down. Used by
// full-registry cleanup.
func (e *Entry[T]) Dispose() {
	e.mu.Lock()
	e.refCount = 0
	writer, unsubscribe := e.writer, e.unsubscribe
	e.writer, e.unsubscribe = nil, nil
	e.mu.Unlock()

	if writer != nil {
		writer.Flush()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// persist is the debounced write path: bump the version, then serialize
// {value, version, originId} under the entry's key. Failures are logged and
// leave in-memory state intact; the version increment stands.
func (e *Entry[T]) persist(value T) {
	e.mu.Lock()
	e.version++
	version := e.version
	e.mu.Unlock()

	raw, err := json.Marshal(PersistedState[T]{Value: value, Version: version, OriginID: e.originID})
	if err != nil {
		e.logger.Error("serialize persisted state", "key", e.key, "error", err)
		return
	}
	if err := e.storage.SetItem(e.key, string(raw)); err != nil {
		e.logger.Error("write persisted state", "key", e.key, "error", err)
		return
	}
	e.notify(events.KindWrite, version, e.originID)
}

// SyncWith reconciles a remote state for this key originating from another
// process. Last-writer-wins: a higher remote version is accepted, an equal
// version is accepted only when the remote origin id sorts strictly after the
// local one, a lower version is ignored. Acceptance overwrites both the value
// and the version and never re-triggers a storage write; the accepted state
// already matches storage.
func (e *Entry[T]) SyncWith(remote RemoteState) {
	e.mu.Lock()
	local := e.version
	e.mu.Unlock()

	accept := remote.Version > local ||
		(remote.Version == local && e.originOrder(remote.OriginID, e.originID) > 0)
	if !accept {
		e.notify(events.KindSyncReject, remote.Version, remote.OriginID)
		return
	}

	var value T
	if err := json.Unmarshal(remote.Value, &value); err != nil {
		e.logger.Warn("ignoring remote value of wrong shape", "key", e.key, "error", err)
		return
	}

	e.applyingRemote.Store(true)
	e.signal.Set(value)
	e.applyingRemote.Store(false)

	e.mu.Lock()
	e.version = remote.Version
	e.mu.Unlock()
	e.notify(events.KindSyncAccept, remote.Version, remote.OriginID)
}

func (e *Entry[T]) notify(kind events.Kind, version uint64, origin string) {
	if !e.hooks.Enabled() {
		return
	}
	if err := e.hooks.Notify(events.Event{Kind: kind, Key: e.key, Version: version, OriginID: origin}); err != nil {
		e.logger.Warn("lifecycle hook failed", "key", e.key, "error", err)
	}
}

func (e *Entry[T]) origin() string { return e.originID }

func (e *Entry[T]) sameDefault(other any) bool {
	def, ok := other.(T)
	if !ok {
		return false
	}
	return reflect.DeepEqual(e.defaultValue, def)
}
