// Package filestore is a file-backed storage adapter: one file per key under
// a root directory, written atomically via temp file + rename. It implements
// the optional watch capability over fsnotify, which makes it a shared medium
// for cross-process atom synchronization on one machine.
package filestore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	atoms "github.com/goliatone/go-atoms"
)

const suffix = ".atom"

// Store satisfies atoms.Storage and atoms.Watchable over a directory.
type Store struct {
	dir string

	mu       sync.Mutex
	watchers map[int]func(atoms.ChangeEvent)
	next     int
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// New prepares dir (creating it if needed) and returns the adapter.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir, watchers: map[int]func(atoms.ChangeEvent){}}, nil
}

func (s *Store) GetItem(key string) (string, bool) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *Store) SetItem(key, value string) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %q: %w", key, err)
	}
	return nil
}

// Watch implements atoms.Watchable. The first watcher starts an fsnotify
// listener on the directory; the returned disposer drops the subscription and
// stops the listener when it was the last one.
func (s *Store) Watch(fn func(atoms.ChangeEvent)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("filestore: watch: %w", err)
		}
		if err := watcher.Add(s.dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("filestore: watch %s: %w", s.dir, err)
		}
		s.watcher = watcher
		s.done = make(chan struct{})
		go s.dispatch(watcher, s.done)
	}

	id := s.next
	s.next++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
		if len(s.watchers) == 0 && s.watcher != nil {
			close(s.done)
			s.watcher.Close()
			s.watcher = nil
		}
	}, nil
}

func (s *Store) dispatch(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handle(event)
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Store) handle(event fsnotify.Event) {
	key, ok := s.key(event.Name)
	if !ok {
		return
	}

	change := atoms.ChangeEvent{Key: key}
	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		raw, err := os.ReadFile(event.Name)
		if err != nil {
			return
		}
		value := string(raw)
		change.NewValue = &value
	} else if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	s.mu.Lock()
	watchers := make([]func(atoms.ChangeEvent), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(change)
	}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+suffix)
}

// key maps a watched file path back to its atom key, skipping temp files and
// anything not written by this adapter.
func (s *Store) key(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, suffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, suffix))
	if err != nil {
		return "", false
	}
	return key, true
}
