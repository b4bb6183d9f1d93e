package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It backs tests and ephemeral runs, and
// doubles as the reference implementation for watch semantics: every Set and
// Delete fans out one event to all live watchers.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[int]chan Event
	nextID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		watchers: make(map[int]chan Event),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := append([]byte(nil), v...)
	return out, true, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = append([]byte(nil), value...)
	s.notifyLocked(key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.notifyLocked(key)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context) (<-chan Event, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan Event, 16)
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// notifyLocked delivers without blocking; a full watcher buffer drops the
// event, which watch consumers tolerate by reloading on the next one.
func (s *MemoryStore) notifyLocked(key string) {
	for _, ch := range s.watchers {
		select {
		case ch <- Event{Key: key}:
		default:
		}
	}
}
