package atoms

import (
	"encoding/json"
	"fmt"
)

// PersistedState is the serialized-to-storage representation of one atom.
// Version is monotonically non-decreasing per key within a single process
// and increments by exactly one on every local persisted write.
type PersistedState[T any] struct {
	Value    T      `json:"value"`
	Version  uint64 `json:"version"`
	OriginID string `json:"originId"`
}

// RemoteState is a persisted state observed through the storage medium before
// its value type is known. The value stays raw until it is routed to the
// entry that owns the key.
type RemoteState struct {
	Value    json.RawMessage
	Version  uint64
	OriginID string
}

// ParseRemoteState decodes and validates a raw storage record. A malformed
// payload returns the underlying JSON error; a payload with missing or
// mistyped fields returns an error wrapping ErrInvalidState so callers can
// tell the two failure classes apart.
func ParseRemoteState(raw string) (RemoteState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return RemoteState{}, fmt.Errorf("atoms: decode persisted state: %w", err)
	}

	value, ok := fields["value"]
	if !ok {
		return RemoteState{}, fmt.Errorf("%w: value", ErrInvalidState)
	}

	var version uint64
	if raw, ok := fields["version"]; !ok {
		return RemoteState{}, fmt.Errorf("%w: version", ErrInvalidState)
	} else if err := json.Unmarshal(raw, &version); err != nil {
		return RemoteState{}, fmt.Errorf("%w: version must be numeric", ErrInvalidState)
	}

	var origin string
	if raw, ok := fields["originId"]; !ok {
		return RemoteState{}, fmt.Errorf("%w: originId", ErrInvalidState)
	} else if err := json.Unmarshal(raw, &origin); err != nil {
		return RemoteState{}, fmt.Errorf("%w: originId must be a string", ErrInvalidState)
	}

	return RemoteState{Value: value, Version: version, OriginID: origin}, nil
}
