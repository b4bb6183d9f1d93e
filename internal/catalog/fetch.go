// Package catalog fetches the remote product catalog, keeps a last-known-good
// snapshot, and broadcasts updates to the storefront.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"kortstore/internal/domain"
	"kortstore/internal/store"
)

// ErrNoSnapshot is returned when a fetch fails and no cached snapshot exists
// to fall back on.
var ErrNoSnapshot = errors.New("catalog: no snapshot available")

// SourceOptions configures the catalog source. The catalog lives as a JSON
// document at a fixed path of a version-controlled repository, addressed by
// owner/repo/branch/path and fetched through the GitHub contents API.
type SourceOptions struct {
	Owner      string
	Repo       string
	Branch     string
	Path       string
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Store      store.Store
}

type Source struct {
	url        string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	store      store.Store
	sfg        singleflight.Group

	mu   sync.Mutex
	etag string
	last *domain.CatalogSnapshot
}

func NewSource(opts SourceOptions) *Source {
	base := opts.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &Source{
		url:        fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", base, opts.Owner, opts.Repo, opts.Path, opts.Branch),
		token:      opts.Token,
		httpClient: client,
		logger:     opts.Logger,
		store:      opts.Store,
	}
	s.loadCache()
	return s
}

// Fetch performs a conditional fetch of the catalog document. A Not Modified
// response resolves to the last known snapshot; a success updates the
// freshness token and persists the document as fallback; a failure falls
// back to the cached snapshot when one exists. Concurrent callers share one
// in-flight request.
func (s *Source) Fetch(ctx context.Context) (*domain.CatalogSnapshot, error) {
	v, err, _ := s.sfg.Do("fetch", func() (interface{}, error) {
		return s.fetchOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CatalogSnapshot), nil
}

// Last returns the last known snapshot without touching the network.
func (s *Source) Last() *domain.CatalogSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Source) setLast(snap *domain.CatalogSnapshot) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
}

func (s *Source) currentETag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etag
}

func (s *Source) setETag(etag string) {
	s.mu.Lock()
	s.etag = etag
	s.mu.Unlock()
}

func (s *Source) fetchOnce(ctx context.Context) (*domain.CatalogSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}
	if etag := s.currentETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.fallback(fmt.Errorf("catalog: fetch: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if etag := resp.Header.Get("ETag"); etag != "" {
		s.setETag(etag)
		s.persistETag(etag)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		s.logger.Debug().Msg("catalog: not modified since last check")
		if last := s.Last(); last != nil {
			return last, nil
		}
		return nil, ErrNoSnapshot
	case resp.StatusCode != http.StatusOK:
		return s.fallback(fmt.Errorf("catalog: source responded with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s.fallback(fmt.Errorf("catalog: read body: %w", err))
	}
	var snap domain.CatalogSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return s.fallback(fmt.Errorf("catalog: decode document: %w", err))
	}

	s.setLast(&snap)
	s.persistSnapshot(body)
	return &snap, nil
}

// fallback degrades to the cached snapshot when one exists, otherwise
// surfaces the fetch error.
func (s *Source) fallback(cause error) (*domain.CatalogSnapshot, error) {
	if last := s.Last(); last != nil {
		s.logger.Warn().Err(cause).Msg("catalog: using cached snapshot")
		return last, nil
	}
	return nil, cause
}

func (s *Source) loadCache() {
	if s.store == nil {
		return
	}
	if data, ok, err := s.store.Get(store.KeyCatalogCache); err == nil && ok {
		var snap domain.CatalogSnapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			s.setLast(&snap)
			s.logger.Debug().Int("products", len(snap.Products)).Msg("catalog: cached snapshot loaded")
		} else {
			s.logger.Warn().Err(err).Msg("catalog: cached snapshot corrupt, ignoring")
		}
	}
	if data, ok, err := s.store.Get(store.KeyCatalogETag); err == nil && ok {
		s.setETag(string(data))
	}
}

func (s *Source) persistSnapshot(raw []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(store.KeyCatalogCache, raw); err != nil {
		s.logger.Warn().Err(err).Msg("catalog: persist snapshot failed")
	}
}

func (s *Source) persistETag(etag string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(store.KeyCatalogETag, []byte(etag)); err != nil {
		s.logger.Warn().Err(err).Msg("catalog: persist etag failed")
	}
}
