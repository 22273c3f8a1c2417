package atoms

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-atoms/pkg/events"
)

// DefaultDebounceWait is the quiet period the write path waits for before
// flushing a value change to storage.
const DefaultDebounceWait = 100 * time.Millisecond

// Handle is the type-erased view of a registry entry, used where the value
// type is not statically known (registry listings, the sync handler).
type Handle interface {
	Key() string
	Version() uint64
	Flush()
	Dispose()
	SyncWith(remote RemoteState)
}

type internalHandle interface {
	Handle
	origin() string
	sameDefault(other any) bool
}

// Manager owns every entry registered against a given storage adapter. The
// registry is keyed by adapter identity: at most one entry exists per
// (adapter, key) pair, enforced by get-or-create semantics. Adapters are
// expected to be pointer-shaped so the map behaves as an identity map.
type Manager struct {
	mu          sync.Mutex
	registries  map[Storage]map[string]internalHandle
	storage     Storage
	logger      Logger
	devWarnings bool
	initial     map[string]any
	originID    string
	originOrder func(a, b string) int
	hooks       events.Hooks
	wait        time.Duration
	flushing    atomic.Bool
}

// ManagerOption configures a Manager at construction.
type ManagerOption func(*Manager)

// WithLogger replaces the default stderr logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDevWarnings toggles non-fatal development diagnostics (default-value
// collisions, structurally invalid remote states). On by default.
func WithDevWarnings(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.devWarnings = enabled
	}
}

// WithDefaultStorage sets the adapter used when Acquire is called with a nil
// storage argument.
func WithDefaultStorage(storage Storage) ManagerOption {
	return func(m *Manager) {
		if storage != nil {
			m.storage = storage
		}
	}
}

// WithInitialState supplies per-key override values for pre-hydration
// scenarios; an entry created for a present key starts from the supplied
// value instead of the stored or default one.
func WithInitialState(initial map[string]any) ManagerOption {
	return func(m *Manager) {
		m.initial = initial
	}
}

// WithOriginID overrides the process-stable origin identifier.
func WithOriginID(id string) ManagerOption {
	return func(m *Manager) {
		if id != "" {
			m.originID = id
		}
	}
}

// WithOriginOrder replaces the total order used to break version ties. The
// default is byte-wise lexicographic comparison; a remote state wins a tie
// iff order(remote, local) > 0.
func WithOriginOrder(order func(a, b string) int) ManagerOption {
	return func(m *Manager) {
		if order != nil {
			m.originOrder = order
		}
	}
}

// WithHooks registers lifecycle hooks notified on writes and merges.
func WithHooks(hooks ...events.Hook) ManagerOption {
	return func(m *Manager) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithDebounceWait overrides the write path's quiet period.
func WithDebounceWait(wait time.Duration) ManagerOption {
	return func(m *Manager) {
		if wait > 0 {
			m.wait = wait
		}
	}
}

// NewManager constructs an empty registry manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		registries:  map[Storage]map[string]internalHandle{},
		logger:      NewLogger(os.Stderr),
		devWarnings: true,
		originOrder: strings.Compare,
		wait:        DefaultDebounceWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.originID == "" {
		m.originID = OriginID()
	}
	if m.storage == nil {
		m.storage = NewMemoryStorage()
	}
	return m
}

var defaultManager = NewManager()

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// AcquireOption configures one acquisition.
type AcquireOption[T any] func(*acquireConfig[T])

type acquireConfig[T any] struct {
	override   *T
	originID   string
	persistent bool
	wait       time.Duration
}

// WithOverride seeds a newly created entry with value instead of the stored
// or default one. Ignored when the entry already exists.
func WithOverride[T any](value T) AcquireOption[T] {
	return func(cfg *acquireConfig[T]) {
		cfg.override = &value
	}
}

// WithPersistent toggles storage I/O for the entry. When false the atom is a
// pure in-memory cell: no reads, writes, or sync.
func WithPersistent[T any](persistent bool) AcquireOption[T] {
	return func(cfg *acquireConfig[T]) {
		cfg.persistent = persistent
	}
}

// WithEntryOriginID overrides the origin identifier for this entry only.
func WithEntryOriginID[T any](id string) AcquireOption[T] {
	return func(cfg *acquireConfig[T]) {
		cfg.originID = id
	}
}

// WithEntryDebounceWait overrides the write quiet period for this entry only.
func WithEntryDebounceWait[T any](wait time.Duration) AcquireOption[T] {
	return func(cfg *acquireConfig[T]) {
		cfg.wait = wait
	}
}

// Acquire returns the entry for (storage, cfg.Key), creating it on first
// request. An empty key fails with ErrKeyRequired; a key already registered
// under a different value type fails with ErrEntryTypeMismatch. Requesting an
// existing entry with a different default value logs a development warning to
// surface accidental key collisions across call sites. A nil storage falls
// back to the manager's default adapter.
func Acquire[T any](m *Manager, cfg Config[T], storage Storage, opts ...AcquireOption[T]) (*Entry[T], error) {
	if m == nil {
		m = defaultManager
	}
	if cfg.Key == "" {
		return nil, ErrKeyRequired
	}
	if storage == nil {
		storage = m.storage
	}

	acquire := acquireConfig[T]{persistent: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&acquire)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	registry := m.registries[storage]
	if registry == nil {
		registry = map[string]internalHandle{}
		m.registries[storage] = registry
	}

	if existing, ok := registry[cfg.Key]; ok {
		typed, ok := existing.(*Entry[T])
		if !ok {
			return nil, fmt.Errorf("%w: key %q", ErrEntryTypeMismatch, cfg.Key)
		}
		if m.devWarnings && !existing.sameDefault(cfg.DefaultValue) {
			m.logger.Warn("default value differs from registered entry", "key", cfg.Key)
		}
		return typed, nil
	}

	settings := entrySettings[T]{
		override:    acquire.override,
		persistent:  acquire.persistent,
		originID:    m.originID,
		originOrder: m.originOrder,
		logger:      m.logger,
		hooks:       m.hooks,
		wait:        m.wait,
	}
	if acquire.originID != "" {
		settings.originID = acquire.originID
	}
	if acquire.wait > 0 {
		settings.wait = acquire.wait
	}
	if settings.override == nil && m.initial != nil {
		if seed, ok := m.initial[cfg.Key]; ok {
			if value, ok := seed.(T); ok {
				settings.override = &value
			} else if m.devWarnings {
				m.logger.Warn("initial state value has wrong type", "key", cfg.Key)
			}
		}
	}

	entry := newEntry(cfg, storage, settings)
	registry[cfg.Key] = entry
	return entry, nil
}

// Registry returns a snapshot of the live entries registered for storage, or
// nil if none were ever registered.
func (m *Manager) Registry(storage Storage) map[string]Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	registry := m.registries[storage]
	if registry == nil {
		return nil
	}
	out := make(map[string]Handle, len(registry))
	for key, entry := range registry {
		out[key] = entry
	}
	return out
}

// Entry returns the registered entry for (storage, key), if any.
func (m *Manager) Entry(storage Storage, key string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	registry := m.registries[storage]
	if registry == nil {
		return nil, false
	}
	entry, ok := registry[key]
	if !ok {
		return nil, false
	}
	return entry, true
}

// Cleanup disposes every entry registered for storage (flushing pending
// writes) and clears the mapping. Intended for test teardown or full
// application shutdown.
func (m *Manager) Cleanup(storage Storage) {
	m.mu.Lock()
	registry := m.registries[storage]
	delete(m.registries, storage)
	m.mu.Unlock()

	for _, entry := range registry {
		entry.Dispose()
	}
}

// FlushAll synchronously flushes every entry registered for storage. It is
// the process teardown hook (visibility hidden, page hide equivalents) and
// guards against re-entrant concurrent flush attempts with an in-flight flag.
func (m *Manager) FlushAll(storage Storage) {
	if !m.flushing.CompareAndSwap(false, true) {
		return
	}
	defer m.flushing.Store(false)

	m.mu.Lock()
	registry := m.registries[storage]
	entries := make([]internalHandle, 0, len(registry))
	for _, entry := range registry {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.Flush()
	}
}
