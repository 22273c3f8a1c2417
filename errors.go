package atoms

import "errors"

var (
	// ErrKeyRequired indicates an acquisition with an empty atom key.
	ErrKeyRequired = errors.New("atoms: key must be a non-empty string")
	// ErrEntryTypeMismatch indicates a key already registered under a
	// different value type.
	ErrEntryTypeMismatch = errors.New("atoms: entry already registered with a different value type")
	// ErrInvalidState indicates a persisted state payload that parsed as JSON
	// but is missing required fields or carries wrong field types.
	ErrInvalidState = errors.New("atoms: persisted state missing or mistyped required fields")
	// ErrWatchUnsupported indicates a storage adapter without change
	// notification support.
	ErrWatchUnsupported = errors.New("atoms: storage adapter does not support change notifications")
	// ErrNotInitialized indicates access to an entry handle before
	// construction completed. This is a programming error, not a runtime
	// condition to recover from.
	ErrNotInitialized = errors.New("atoms: entry accessed before initialization")
)
