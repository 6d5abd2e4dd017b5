package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/ranker"
)

// PermissionState is the browser's answer to a geolocation permission query.
type PermissionState int

const (
	PermissionPrompt PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// PositionSource is the device geolocation facility.
type PositionSource interface {
	Permission(ctx context.Context) (PermissionState, error)
	CurrentPosition(ctx context.Context) (ranker.Position, error)
}

// API is the subset of Client a Locator needs.
type API interface {
	LoadLocations(ctx context.Context, token string) ([]domain.Location, error)
	SearchAddress(ctx context.Context, token, address string) (domain.Coordinate, error)
}

// User-facing failures. Each ends only the action that produced it; the
// displayed list is left as it was.
var (
	ErrLocationDenied = errors.New("you have blocked location services; enable location permissions in your browser settings to use this feature")
	ErrNoPosition     = errors.New("could not get your location; please make sure you have granted permission")
	ErrNoAddress      = errors.New("location not found")
	// ErrSuperseded means a newer origin request finished first or is still
	// running, so this result was discarded.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// View is what the widget displays.
type View struct {
	Locations  []ranker.RankedLocation
	Origin     *ranker.Position
	Unit       ranker.Unit
	Generation uint64
}

// Locator is one embed's session. Every origin change bumps a generation
// counter; a ranking is applied only if its generation is still the latest,
// so an older, slower request can never overwrite a newer one.
type Locator struct {
	api       API
	token     string
	positions PositionSource
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
	locations  []domain.Location
	view       View
}

// NewLocator creates a session for token. unit is the display unit.
func NewLocator(api API, token string, positions PositionSource, unit ranker.Unit, logger *slog.Logger) *Locator {
	return &Locator{
		api:       api,
		token:     token,
		positions: positions,
		logger:    logger,
		view:      View{Unit: unit},
	}
}

// Load fetches the collection and shows it unranked, in collection order.
func (l *Locator) Load(ctx context.Context) error {
	locs, err := l.api.LoadLocations(ctx, l.token)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.locations = locs
	if l.view.Origin != nil {
		l.view.Locations = ranker.Rank(locs, *l.view.Origin)
	} else {
		l.view.Locations = unranked(locs)
	}
	return nil
}

// UseDeviceLocation ranks from the device position. A denied permission is
// refused up front; a failed permission query is treated as "prompt".
func (l *Locator) UseDeviceLocation(ctx context.Context) error {
	return l.rankFrom(ctx, func(ctx context.Context) (ranker.Position, error) {
		state, err := l.positions.Permission(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "geolocation permission query failed", "error", err)
			state = PermissionPrompt
		}
		if state == PermissionDenied {
			return ranker.Position{}, ErrLocationDenied
		}

		pos, err := l.positions.CurrentPosition(ctx)
		if err != nil {
			return ranker.Position{}, fmt.Errorf("%w: %v", ErrNoPosition, err)
		}
		return pos, nil
	})
}

// SearchAddress ranks from a free-text address.
func (l *Locator) SearchAddress(ctx context.Context, address string) error {
	return l.rankFrom(ctx, func(ctx context.Context) (ranker.Position, error) {
		c, err := l.api.SearchAddress(ctx, l.token, address)
		if errors.Is(err, ErrNoAddress) {
			return ranker.Position{}, ErrNoAddress
		}
		if err != nil {
			return ranker.Position{}, fmt.Errorf("search address: %w", err)
		}
		lat, lon, _ := c.LatLon()
		return ranker.Position{Latitude: lat, Longitude: lon}, nil
	})
}

// SetOrigin ranks from a known position.
func (l *Locator) SetOrigin(pos ranker.Position) {
	_ = l.rankFrom(context.Background(), func(context.Context) (ranker.Position, error) {
		return pos, nil
	})
}

// SetUnit changes the display unit. Ranking is unaffected.
func (l *Locator) SetUnit(u ranker.Unit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view.Unit = u
}

// View returns a snapshot of the displayed state.
func (l *Locator) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.view
	v.Locations = append([]ranker.RankedLocation(nil), l.view.Locations...)
	if l.view.Origin != nil {
		origin := *l.view.Origin
		v.Origin = &origin
	}
	return v
}

func (l *Locator) rankFrom(ctx context.Context, acquire func(context.Context) (ranker.Position, error)) error {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	pos, err := acquire(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		l.logger.DebugContext(ctx, "discarding stale ranking", "generation", gen, "latest", l.generation)
		return ErrSuperseded
	}
	if err != nil {
		return err
	}

	l.view.Locations = ranker.Rank(l.locations, pos)
	l.view.Origin = &pos
	l.view.Generation = gen
	return nil
}

func unranked(locs []domain.Location) []ranker.RankedLocation {
	out := make([]ranker.RankedLocation, len(locs))
	for i, loc := range locs {
		out[i] = ranker.RankedLocation{Location: loc, DistanceKm: math.Inf(1)}
	}
	return out
}
