package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kortstore/internal/store"
)

const catalogDoc = `{"produtos":[{"id":1,"titulo":"KORT Optimizer","preco":49.90,"categoria":"Otimização"}]}`

type catalogBackend struct {
	mu      sync.Mutex
	etag    string
	doc     string
	notMods int
	fail    bool
}

func (b *catalogBackend) set(etag, doc string) {
	b.mu.Lock()
	b.etag = etag
	b.doc = doc
	b.mu.Unlock()
}

func (b *catalogBackend) setFail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

func (b *catalogBackend) notModifiedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notMods
}

func (b *catalogBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == b.etag {
			b.notMods++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", b.etag)
		_, _ = w.Write([]byte(b.doc))
	}
}

func newTestSource(t *testing.T, baseURL string, st store.Store) *Source {
	t.Helper()
	return NewSource(SourceOptions{
		Owner:   "kortstore",
		Repo:    "catalog",
		Branch:  "main",
		Path:    "products.json",
		BaseURL: baseURL,
		Logger:  zerolog.Nop(),
		Store:   st,
	})
}

func TestFetchStoresSnapshotAndETag(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	st := store.NewMemoryStore()
	source := newTestSource(t, srv.URL, st)

	snap, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "KORT Optimizer", snap.Products[0].Title)

	raw, ok, err := st.Get(store.KeyCatalogCache)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, catalogDoc, string(raw))

	etag, ok, err := st.Get(store.KeyCatalogETag)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"v1"`, string(etag))
}

func TestFetchNotModifiedReturnsLastSnapshot(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())

	first, err := source.Fetch(context.Background())
	require.NoError(t, err)
	second, err := source.Fetch(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second, "304 resolves to the cached snapshot")
	assert.Equal(t, 1, backend.notModifiedCount())
}

func TestFetchFallsBackToCacheOnFailure(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	first, err := source.Fetch(context.Background())
	require.NoError(t, err)

	backend.setFail(true)
	snap, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, snap)
}

func TestFetchFailureWithoutCache(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	backend.setFail(true)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
}

func TestLastIsSafeDuringFetch(t *testing.T) {
	backend := &catalogBackend{etag: `"v1"`, doc: catalogDoc}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	source := newTestSource(t, srv.URL, store.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = source.Last()
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := source.Fetch(context.Background())
		require.NoError(t, err)
	}
	wg.Wait()

	require.NotNil(t, source.Last())
}

func TestNewSourceLoadsPersistedCache(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(store.KeyCatalogCache, []byte(catalogDoc)))
	require.NoError(t, st.Set(store.KeyCatalogETag, []byte(`"v1"`)))

	source := newTestSource(t, "http://127.0.0.1:0", st)

	last := source.Last()
	require.NotNil(t, last, "cached snapshot available before any fetch")
	assert.Len(t, last.Products, 1)
}
