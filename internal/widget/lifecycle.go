package widget

import (
	"fmt"
	"sync"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/ranker"
)

// MapState is the stage of the map lifecycle.
type MapState int

const (
	// Uninitialized: no map exists. Locations received now are held until
	// the map is created.
	Uninitialized MapState = iota
	// MapReady: the map and tile layer exist but no markers are drawn.
	MapReady
	// MarkersSynced: markers match the latest location list.
	MarkersSynced
)

func (s MapState) String() string {
	switch s {
	case MapReady:
		return "map_ready"
	case MarkersSynced:
		return "markers_synced"
	default:
		return "uninitialized"
	}
}

// Marker is one pin on the map.
type Marker struct {
	ID       string
	Position ranker.Position
	Title    string
	Detail   string
}

// Renderer draws the map. Implementations wrap whatever mapping library the
// page uses.
type Renderer interface {
	CreateMap(tileURL string, center ranker.Position, zoom int) error
	SetMarkers(markers []Marker)
	ClearMarkers()
	InvalidateSize()
	Destroy()
}

// DefaultCenter and DefaultZoom frame the map before any origin is known.
var DefaultCenter = ranker.Position{Latitude: 40.7128, Longitude: -74.006}

const DefaultZoom = 12

// MapLifecycle drives a Renderer through explicit events. Each transition
// performs its own cleanup: markers are cleared before they are redrawn and
// Close tears everything down and returns to Uninitialized.
type MapLifecycle struct {
	mu       sync.Mutex
	renderer Renderer
	tileURL  string
	state    MapState
	pending  []Marker
	// hasPending distinguishes "no update yet" from "updated to empty".
	hasPending bool
}

// NewMapLifecycle creates a lifecycle for a map using tileURL.
func NewMapLifecycle(r Renderer, tileURL string) *MapLifecycle {
	return &MapLifecycle{renderer: r, tileURL: tileURL}
}

// State returns the current state.
func (m *MapLifecycle) State() MapState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStylesLoaded creates the map once the page's map styles are available.
// Later calls are no-ops.
func (m *MapLifecycle) OnStylesLoaded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Uninitialized {
		return nil
	}
	if err := m.renderer.CreateMap(m.tileURL, DefaultCenter, DefaultZoom); err != nil {
		return fmt.Errorf("create map: %w", err)
	}
	m.state = MapReady
	if m.hasPending {
		m.syncLocked()
	}
	return nil
}

// OnLocationsUpdated replaces the markers with the resolved locations in
// locs. Before the map exists the list is held and drawn on creation.
func (m *MapLifecycle) OnLocationsUpdated(locs []domain.Location) {
	markers := markersFor(locs)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = markers
	m.hasPending = true
	if m.state != Uninitialized {
		m.syncLocked()
	}
}

// OnViewportResized tells the map its container changed size.
func (m *MapLifecycle) OnViewportResized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Uninitialized {
		m.renderer.InvalidateSize()
	}
}

// Close removes markers, destroys the map and forgets pending locations.
func (m *MapLifecycle) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Uninitialized {
		m.pending, m.hasPending = nil, false
		return
	}
	m.renderer.ClearMarkers()
	m.renderer.Destroy()
	m.state = Uninitialized
	m.pending, m.hasPending = nil, false
}

func (m *MapLifecycle) syncLocked() {
	m.renderer.ClearMarkers()
	m.renderer.SetMarkers(m.pending)
	m.state = MarkersSynced
}

func markersFor(locs []domain.Location) []Marker {
	markers := make([]Marker, 0, len(locs))
	for _, l := range locs {
		lat, lon, ok := l.Coordinate.LatLon()
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			ID:       l.ID,
			Position: ranker.Position{Latitude: lat, Longitude: lon},
			Title:    l.Name,
			Detail:   l.Address,
		})
	}
	return markers
}
