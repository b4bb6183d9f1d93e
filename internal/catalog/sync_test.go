package catalog

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kortstore/internal/domain"
	"kortstore/internal/store"
)

type countingSubscriber struct {
	mu    sync.Mutex
	snaps []*domain.CatalogSnapshot
}

func (c *countingSubscriber) fn(snap *domain.CatalogSnapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, snap)
	c.mu.Unlock()
}

func (c *countingSubscriber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func TestRefreshBroadcastsOnlyOnChange(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	manager := NewManager(source, zerolog.Nop())
	sub := &countingSubscriber{}
	manager.Subscribe(sub.fn)

	snap, err := manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sub.count())

	// Same document again (304): no broadcast.
	_, err = manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sub.count())

	// Changed document: broadcast with the prepared snapshot.
	backend.set(`"v2"`, `{"produtos":[{"id":1,"titulo":"KORT Optimizer","preco":59.90,"categoria":"Otimização"}]}`)
	next, err := manager.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sub.count())
	assert.NotEqual(t, snap.Products[0].Price, next.Products[0].Price)
}

func TestRefreshDeliversPreparedSnapshots(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	manager := NewManager(source, zerolog.Nop())
	sub := &countingSubscriber{}
	manager.Subscribe(sub.fn)

	snap, err := manager.Refresh(context.Background())
	require.NoError(t, err)

	// The raw document holds one product; subscribers see the flagship plans.
	assert.Len(t, snap.Products, 5)
	require.Equal(t, 1, sub.count())
	assert.Len(t, sub.snaps[0].Products, 5)
}

func TestPollingPicksUpChanges(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	manager := NewManager(source, zerolog.Nop())
	sub := &countingSubscriber{}
	manager.Subscribe(sub.fn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := manager.Refresh(ctx)
	require.NoError(t, err)

	manager.StartPolling(ctx, 10*time.Millisecond)
	defer manager.StopPolling()

	backend.set(`"v2"`, `{"produtos":[{"id":1,"titulo":"KORT Optimizer","preco":99.90,"categoria":"Otimização"}]}`)

	require.Eventually(t, func() bool { return sub.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartPollingTwiceIsNoOp(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	manager := NewManager(source, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.StartPolling(ctx, time.Hour)
	manager.StartPolling(ctx, time.Hour)

	manager.StopPolling()
	manager.StopPolling()
}
