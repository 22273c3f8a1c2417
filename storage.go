package atoms

import "sync"

// Storage is the minimal key/value contract an atom persists through. Any
// backend satisfying it is usable; adapters that can observe external writes
// additionally implement Watchable.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// ChangeEvent describes one externally observed storage mutation. A nil
// NewValue marks a removal.
type ChangeEvent struct {
	Key      string
	NewValue *string
}

// Watchable is the optional change-notification capability of a storage
// adapter. Watch subscribes fn to external mutations and returns a disposer.
type Watchable interface {
	Watch(fn func(ChangeEvent)) (func(), error)
}

// MemoryStorage is the default in-process adapter: a mutex-guarded map that
// fans every mutation out to all watchers. It delivers events to the writing
// process too; echo suppression is the sync handler's job.
type MemoryStorage struct {
	mu       sync.Mutex
	items    map[string]string
	watchers map[int]func(ChangeEvent)
	next     int
}

// NewMemoryStorage constructs an empty in-memory adapter.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items:    map[string]string{},
		watchers: map[int]func(ChangeEvent){},
	}
}

func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[key]
	return value, ok
}

func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	s.items[key] = value
	watchers := s.snapshotWatchers()
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(ChangeEvent{Key: key, NewValue: &value})
	}
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	delete(s.items, key)
	watchers := s.snapshotWatchers()
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(ChangeEvent{Key: key})
	}
	return nil
}

// Watch implements Watchable.
func (s *MemoryStorage) Watch(fn func(ChangeEvent)) (func(), error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStorage) snapshotWatchers() []func(ChangeEvent) {
	if len(s.watchers) == 0 {
		return nil
	}
	out := make([]func(ChangeEvent), 0, len(s.watchers))
	for id := 0; id < s.next; id++ {
		if fn, ok := s.watchers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
