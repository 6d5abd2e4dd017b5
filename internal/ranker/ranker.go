// Package ranker orders locations by great-circle distance from a viewer.
// Distances are always computed and compared in kilometers; conversion to
// miles happens only for display.
package ranker

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/store-locator/internal/domain"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371

const kmToMiles = 0.621371

// Position is the viewer's origin.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the haversine distance in kilometers between two points.
func Distance(a, b Position) float64 {
	dLat := (b.Latitude - a.Latitude) * (math.Pi / 180)
	dLon := (b.Longitude - a.Longitude) * (math.Pi / 180)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*(math.Pi/180))*math.Cos(b.Latitude*(math.Pi/180))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RankedLocation is a location with its distance from the origin.
// DistanceKm is +Inf for locations without a coordinate.
type RankedLocation struct {
	domain.Location
	DistanceKm float64
}

// HasDistance reports whether the location could be placed.
func (r RankedLocation) HasDistance() bool {
	return !math.IsInf(r.DistanceKm, 1)
}

// Rank returns locs ordered nearest first. The sort is stable, so equal
// distances keep their input order, and unresolved locations come last in
// input order.
func Rank(locs []domain.Location, origin Position) []RankedLocation {
	ranked := make([]RankedLocation, len(locs))
	for i, loc := range locs {
		d := math.Inf(1)
		if lat, lon, ok := loc.Coordinate.LatLon(); ok {
			d = Distance(origin, Position{Latitude: lat, Longitude: lon})
		}
		ranked[i] = RankedLocation{Location: loc, DistanceKm: d}
	}
	slices.SortStableFunc(ranked, func(a, b RankedLocation) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// Unit is a display unit for distances.
type Unit string

const (
	Miles      Unit = "mi"
	Kilometers Unit = "km"
)

// ParseUnit accepts the unit names used in widget settings.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "mi", "miles", "Miles":
		return Miles, nil
	case "km", "kilometers", "Kilometers":
		return Kilometers, nil
	default:
		return "", fmt.Errorf("unknown distance unit %q", s)
	}
}

// KilometersToMiles converts a distance for display.
func KilometersToMiles(km float64) float64 {
	return km * kmToMiles
}

// In returns the distance expressed in unit u.
func (r RankedLocation) In(u Unit) float64 {
	if u == Miles {
		return KilometersToMiles(r.DistanceKm)
	}
	return r.DistanceKm
}

// Format renders the distance with one decimal, e.g. "6.2 mi". Locations
// without a distance render as an empty string.
func (r RankedLocation) Format(u Unit) string {
	if !r.HasDistance() {
		return ""
	}
	return fmt.Sprintf("%.1f %s", r.In(u), u)
}
