package atoms

import "sync"

// Signal is the minimal mutable observable cell an entry builds on. Set and
// Update notify subscribers synchronously, outside the internal lock, in
// registration order. Subscribers must not assume exclusive access to the
// cell while being notified.
type Signal[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]func(T)
	next  int
}

// NewSignal constructs a cell holding value.
func NewSignal[T any](value T) *Signal[T] {
	return &Signal[T]{value: value, subs: map[int]func(T){}}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and notifies subscribers.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	subs := s.snapshotSubs()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(value)
	}
}

// Update applies fn to the current value and notifies subscribers with the
// result.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	value := s.value
	subs := s.snapshotSubs()
	s.mu.Unlock()
	for _, sub := range subs {
		sub(value)
	}
}

// Subscribe registers fn for change notifications and returns its disposer.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Signal[T]) snapshotSubs() []func(T) {
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(s.subs))
	for id := 0; id < s.next; id++ {
		if fn, ok := s.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
