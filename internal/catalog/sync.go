package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kortstore/internal/domain"
)

// Subscriber receives display-ready snapshots whenever the raw catalog
// changes.
type Subscriber func(*domain.CatalogSnapshot)

// Manager polls the catalog source and broadcasts updates. Broadcasts only
// happen when the serialized raw document actually differs from the previous
// one; poll errors are logged and the next tick proceeds.
type Manager struct {
	source *Source
	logger zerolog.Logger

	mu          sync.Mutex
	subscribers []Subscriber
	cancel      context.CancelFunc
	lastRaw     []byte
}

func NewManager(source *Source, logger zerolog.Logger) *Manager {
	return &Manager{source: source, logger: logger}
}

func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

// Refresh fetches once and broadcasts if the catalog changed. The initial
// load calls it directly so subscribers get a snapshot before the first
// poll tick.
func (m *Manager) Refresh(ctx context.Context) (*domain.CatalogSnapshot, error) {
	raw, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	prepared := Prepare(raw)
	if m.markSeen(raw) {
		m.broadcast(prepared)
	}
	return prepared, nil
}

// StartPolling repeats Refresh every interval until StopPolling or ctx
// cancellation. An in-flight fetch at stop time is not aborted; its result
// is simply never broadcast because the loop has exited.
func (m *Manager) StartPolling(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info().Dur("interval", interval).Msg("catalog: polling started")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				m.logger.Info().Msg("catalog: polling stopped")
				return
			case <-ticker.C:
				if _, err := m.Refresh(pollCtx); err != nil {
					m.logger.Error().Err(err).Msg("catalog: poll tick failed")
				}
			}
		}
	}()
}

// StopPolling cancels the polling loop. Safe to call repeatedly.
func (m *Manager) StopPolling() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// markSeen records the raw document and reports whether it differs from the
// previously seen one.
func (m *Manager) markSeen(raw *domain.CatalogSnapshot) bool {
	data, err := json.Marshal(raw)
	if err != nil {
		m.logger.Warn().Err(err).Msg("catalog: serialize for diff failed")
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if string(m.lastRaw) == string(data) {
		return false
	}
	m.lastRaw = data
	return true
}

func (m *Manager) broadcast(snap *domain.CatalogSnapshot) {
	m.mu.Lock()
	subs := append([]Subscriber(nil), m.subscribers...)
	m.mu.Unlock()
	m.logger.Info().Int("products", len(snap.Products)).Msg("catalog: snapshot updated")
	for _, fn := range subs {
		fn(snap)
	}
}
