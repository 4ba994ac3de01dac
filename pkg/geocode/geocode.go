// Package geocode resolves free-text place queries to coordinates and
// coordinates back to human-readable place names.
package geocode

import (
	"context"

	"bloodlink/pkg/geo"
)

// Address is a coarse reverse-geocoding result. Fields may be empty when the
// provider has no data at that level.
type Address struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Geocoder resolves place queries in both directions. Implementations must
// honor context cancellation.
type Geocoder interface {
	// Resolve turns a free-text query ("Apollo Hospital, Chennai") into
	// coordinates. A query with no results yields a not-found error.
	Resolve(ctx context.Context, query string) (geo.Point, error)
	// ReverseGeocode resolves a point to its city, region and country.
	ReverseGeocode(ctx context.Context, p geo.Point) (Address, error)
}
