// Package atoms provides shared, persisted, cross-process-synchronized
// reactive state cells ("atoms"). Each atom is identified by a string key,
// backed by a pluggable key/value Storage adapter, debounced on write,
// reference-counted across consumers, and reconciled across processes via a
// last-writer-wins versioned merge.
//
// Responsibilities:
//   - Entry[T] owns one atom's reactive value, version counter, reference
//     count, and persistence wiring.
//   - Manager maps (storage adapter, key) pairs to entries with get-or-create
//     semantics and routes change notifications to the matching entry.
//   - Storage is the minimal key/value contract; adapters that also implement
//     Watchable deliver external change notifications for sync.
//
// Data flow:
//
//	Acquire -> Entry.Mount -> Signal.Set -> debounced write -> Storage
//	Storage change event -> Manager.HandleChange -> Entry.SyncWith
//
// Conflict resolution is eventual, not linearizable: concurrent writers are
// reconciled after the fact by version, then by a total order over origin
// ids. Each key is synchronized independently; there are no multi-key
// transactions.
package atoms
