package atoms

import "errors"

// HandleChange routes one externally observed storage mutation to the entry
// registered for its key. Events with no key or a nil new value (removals,
// non-applicable notifications), events for unregistered keys, unreadable or
// structurally invalid payloads, and the process's own echoed writes are all
// dropped here; nothing fails past this boundary.
func (m *Manager) HandleChange(storage Storage, event ChangeEvent) {
	if event.Key == "" || event.NewValue == nil {
		return
	}

	m.mu.Lock()
	var entry internalHandle
	if registry := m.registries[storage]; registry != nil {
		entry = registry[event.Key]
	}
	m.mu.Unlock()
	if entry == nil {
		return
	}

	remote, err := ParseRemoteState(*event.NewValue)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			if m.devWarnings {
				m.logger.Warn("ignoring structurally invalid change event", "key", event.Key, "error", err)
			}
		} else {
			m.logger.Error("ignoring unreadable change event", "key", event.Key, "error", err)
		}
		return
	}

	if remote.OriginID == entry.origin() {
		return
	}
	entry.SyncWith(remote)
}

// BindSync subscribes HandleChange to the adapter's change notifications and
// returns the unwatch disposer. Fails with ErrWatchUnsupported when the
// adapter cannot observe external writes.
func (m *Manager) BindSync(storage Storage) (func(), error) {
	watchable, ok := storage.(Watchable)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return watchable.Watch(func(event ChangeEvent) {
		m.HandleChange(storage, event)
	})
}
