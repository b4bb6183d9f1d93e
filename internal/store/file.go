package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore persists each key as one file under a profile directory. It is
// the default store for local storefront runs where no Redis is available.
//
// Watch works by polling file modification times, so two processes sharing a
// profile directory observe each other's writes with at most pollInterval
// latency.
type FileStore struct {
	dir          string
	pollInterval time.Duration

	mu    sync.Mutex
	seen  map[string]time.Time
	known map[string]struct{}
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store: profile directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure profile directory: %w", err)
	}
	return &FileStore{
		dir:          dir,
		pollInterval: 500 * time.Millisecond,
		seen:         make(map[string]time.Time),
		known:        make(map[string]struct{}),
	}, nil
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Set(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	// Write-then-rename keeps concurrent readers from seeing partial values.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 16)
	s.snapshotState()
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, key := range s.changedKeys() {
					select {
					case ch <- Event{Key: key}:
					default:
					}
				}
			}
		}
	}()
	return ch, nil
}

func (s *FileStore) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "/\\") {
		return "", fmt.Errorf("store: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *FileStore) snapshotState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]time.Time)
	s.known = make(map[string]struct{})
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		key := keyFromName(entry.Name())
		if key == "" {
			continue
		}
		s.seen[key] = info.ModTime()
		s.known[key] = struct{}{}
	}
}

func (s *FileStore) changedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []string
	current := make(map[string]struct{})
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		key := keyFromName(entry.Name())
		if key == "" {
			continue
		}
		current[key] = struct{}{}
		if prev, ok := s.seen[key]; !ok || info.ModTime().After(prev) {
			changed = append(changed, key)
		}
		s.seen[key] = info.ModTime()
	}
	// Deleted files count as changes too.
	for key := range s.known {
		if _, ok := current[key]; !ok {
			changed = append(changed, key)
			delete(s.seen, key)
		}
	}
	s.known = current
	return changed
}

func keyFromName(name string) string {
	if !strings.HasSuffix(name, ".json") {
		return ""
	}
	return strings.TrimSuffix(name, ".json")
}
