package domain

import (
	"encoding/json"
	"fmt"
)

// Coordinate is a latitude/longitude pair that is either resolved or unresolved.
// The zero value is unresolved.
type Coordinate struct {
	lat      float64
	lon      float64
	resolved bool
}

// Resolved returns a coordinate at the given position.
func Resolved(lat, lon float64) Coordinate {
	return Coordinate{lat: lat, lon: lon, resolved: true}
}

// Unresolved returns a coordinate with no position.
func Unresolved() Coordinate {
	return Coordinate{}
}

// LatLon returns the position and whether the coordinate is resolved.
func (c Coordinate) LatLon() (lat, lon float64, ok bool) {
	return c.lat, c.lon, c.resolved
}

// IsResolved reports whether the coordinate carries a position.
func (c Coordinate) IsResolved() bool { return c.resolved }

func (c Coordinate) String() string {
	if !c.resolved {
		return "unresolved"
	}
	return fmt.Sprintf("%.6f,%.6f", c.lat, c.lon)
}

// Location is a single store read from the CMS collection.
type Location struct {
	ID         string
	Name       string
	Address    string
	Phone      string
	Coordinate Coordinate
}

type locationJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// cmsFields is the nested item shape written by older releases, which cached
// raw CMS items instead of flattened locations.
type cmsFields struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// MarshalJSON writes unresolved coordinates as null latitude/longitude.
func (l Location) MarshalJSON() ([]byte, error) {
	out := locationJSON{
		ID:      l.ID,
		Name:    l.Name,
		Address: l.Address,
		Phone:   l.Phone,
	}
	if lat, lon, ok := l.Coordinate.LatLon(); ok {
		out.Latitude = &lat
		out.Longitude = &lon
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the flat shape and the legacy CMS item shape
// ({"id": ..., "fieldData": {...}}). A coordinate is resolved only when both
// latitude and longitude are present.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		locationJSON
		FieldData *cmsFields `json:"fieldData"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Location{
		ID:      raw.ID,
		Name:    raw.Name,
		Address: raw.Address,
		Phone:   raw.Phone,
	}
	lat, lon := raw.Latitude, raw.Longitude
	if f := raw.FieldData; f != nil {
		l.Name, l.Address, l.Phone = f.Name, f.Address, f.Phone
		lat, lon = f.Latitude, f.Longitude
	}
	if lat != nil && lon != nil {
		l.Coordinate = Resolved(*lat, *lon)
	}
	return nil
}

// Scope is the authorization carried by a capability token: one site, one
// collection, and the map provider key used on the site's behalf.
type Scope struct {
	SiteID       string
	CollectionID string
	MapboxKey    string
}

// Site is the operator-held configuration for one embedding site.
type Site struct {
	ID             string `yaml:"siteId"`
	CMSAccessToken string `yaml:"cmsAccessToken"`
	MapboxKey      string `yaml:"mapboxKey"`
	CollectionID   string `yaml:"collectionId"`
}
