// Package geo provides the small amount of spherical geometry the matching
// engine needs: points, viewport bounds, great-circle distances and the
// degree spans covered by a radius at a given latitude.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// KmPerDegreeLat is the approximate north-south extent of one degree of
// latitude. It is used to convert radii into grid cell spans.
const KmPerDegreeLat = 111.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the zero value. A (0,0) coordinate is
// treated as unset; it is in the Gulf of Guinea and never a real donor or
// hospital location in this system.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Valid reports whether the point is within WGS84 coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bounds is a lat/lng axis-aligned viewport rectangle.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Valid reports whether the bounds describe a non-inverted rectangle with
// corners inside WGS84 ranges.
func (b Bounds) Valid() bool {
	min := Point{Lat: b.MinLat, Lng: b.MinLng}
	max := Point{Lat: b.MaxLat, Lng: b.MaxLng}

	return min.Valid() && max.Valid() && b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng
}

// Contains reports whether the point lies inside the bounds (inclusive).
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// DistanceKm returns the great-circle (Haversine) distance between two points
// in kilometers. A planar approximation is deliberately avoided; radius
// searches must stay correct near the poles and for large radii.
func DistanceKm(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DegreeSpans returns the latitude and longitude spans, in degrees, covered
// by radiusKm around a point at the given latitude. The longitude span grows
// towards the poles; it is clamped to the full circle when the cosine term
// degenerates.
func DegreeSpans(lat, radiusKm float64) (latSpan, lngSpan float64) {
	latSpan = radiusKm / KmPerDegreeLat

	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		return latSpan, 360
	}
	lngSpan = radiusKm / (KmPerDegreeLat * cos)
	if lngSpan > 360 {
		lngSpan = 360
	}

	return latSpan, lngSpan
}
