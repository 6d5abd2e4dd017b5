// Package site holds per-site operator configuration: the CMS access token,
// the default collection and the Mapbox key. Tokens carry the Mapbox key
// themselves, so this store is only consulted for CMS reads.
package site

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/store-locator/internal/domain"
)

// MemoryStore is a concurrency-safe in-memory domain.SiteStore.
type MemoryStore struct {
	mu    sync.RWMutex
	sites map[string]domain.Site
}

// NewMemoryStore returns a store seeded with sites.
func NewMemoryStore(sites ...domain.Site) *MemoryStore {
	s := &MemoryStore{sites: make(map[string]domain.Site, len(sites))}
	for _, st := range sites {
		s.sites[st.ID] = st
	}
	return s
}

// Site returns the configuration for siteID, or domain.ErrNotFound.
func (s *MemoryStore) Site(_ context.Context, siteID string) (domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sites[siteID]
	if !ok {
		return domain.Site{}, fmt.Errorf("site %q: %w", siteID, domain.ErrNotFound)
	}
	return st, nil
}

// Put adds or replaces a site.
func (s *MemoryStore) Put(st domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[st.ID] = st
}

// Len returns the number of configured sites.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sites)
}

type fileLayout struct {
	Sites []domain.Site `yaml:"sites"`
}

// LoadFile reads a YAML file of the form:
//
//	sites:
//	  - siteId: acme
//	    cmsAccessToken: ...
//	    collectionId: ...
//	    mapboxKey: pk....
//
// A missing file yields an empty store.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewMemoryStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return Parse(data)
}

// Parse decodes the YAML sites layout. Every entry needs a siteId.
func Parse(data []byte) (*MemoryStore, error) {
	var layout fileLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	seen := make(map[string]bool, len(layout.Sites))
	for i, st := range layout.Sites {
		if st.ID == "" {
			return nil, fmt.Errorf("sites[%d]: siteId is required", i)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("sites[%d]: duplicate siteId %q", i, st.ID)
		}
		seen[st.ID] = true
	}
	return NewMemoryStore(layout.Sites...), nil
}
