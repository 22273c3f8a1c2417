package atoms_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	atoms "github.com/goliatone/go-atoms"
)

// countingStorage wraps the in-memory adapter with a write counter and an
// optional injected write failure.
type countingStorage struct {
	*atoms.MemoryStorage

	mu       sync.Mutex
	writes   int
	failNext bool
}

func newCountingStorage() *countingStorage {
	return &countingStorage{MemoryStorage: atoms.NewMemoryStorage()}
}

func (s *countingStorage) SetItem(key, value string) error {
	s.mu.Lock()
	s.writes++
	fail := s.failNext
	s.failNext = false
	s.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return s.MemoryStorage.SetItem(key, value)
}

func (s *countingStorage) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *countingStorage) failNextWrite() {
	s.mu.Lock()
	s.failNext = true
	s.mu.Unlock()
}

// testLogger records every message so tests can assert on diagnostics.
type testLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *testLogger) log(level, msg string, keyvals ...any) {
	l.mu.Lock()
	l.entries = append(l.entries, fmt.Sprintf("%s: %s %v", level, msg, keyvals))
	l.mu.Unlock()
}

func (l *testLogger) Debug(msg string, keyvals ...any) { l.log("debug", msg, keyvals...) }
func (l *testLogger) Info(msg string, keyvals ...any)  { l.log("info", msg, keyvals...) }
func (l *testLogger) Warn(msg string, keyvals ...any)  { l.log("warn", msg, keyvals...) }
func (l *testLogger) Error(msg string, keyvals ...any) { l.log("error", msg, keyvals...) }

func (l *testLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *testLogger) contains(substr string) bool {
	for _, entry := range l.messages() {
		if strings.Contains(entry, substr) {
			return true
		}
	}
	return false
}
