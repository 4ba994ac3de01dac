// Package geoindex provides a grid-bucketed spatial index over donor
// records. Donors are hashed into fixed-size lat/lng cells; a radius query
// visits only the cells overlapping the search circle and filters the
// remainder by exact Haversine distance. Insert and remove are O(1)
// amortized, queries are O(donors in covered cells).
//
// The index itself is not safe for concurrent mutation; the registry owns
// synchronization and hands immutable snapshots to pipeline runs.
package geoindex

import (
	"math"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

// DefaultCellSizeKm is the grid cell edge length used when none is given.
// Cells close to the smallest search radius keep ring expansion cheap.
const DefaultCellSizeKm = 5.0

type cellKey struct {
	x int // latitude band
	y int // longitude band, wrapped around the antimeridian
}

// Index is a grid-bucketed donor index.
type Index struct {
	cellDeg float64
	wrapY   int

	cells map[cellKey]map[domain.DonorID]domain.Donor
	byID  map[domain.DonorID]cellKey
}

// New creates an empty index with the given cell edge length in kilometers.
// Non-positive values fall back to DefaultCellSizeKm.
func New(cellSizeKm float64) *Index {
	if cellSizeKm <= 0 {
		cellSizeKm = DefaultCellSizeKm
	}
	cellDeg := cellSizeKm / geo.KmPerDegreeLat

	return &Index{
		cellDeg: cellDeg,
		wrapY:   int(math.Ceil(360 / cellDeg)),
		cells:   make(map[cellKey]map[domain.DonorID]domain.Donor),
		byID:    make(map[domain.DonorID]cellKey),
	}
}

func (idx *Index) keyFor(p geo.Point) cellKey {
	y := int(math.Floor(p.Lng / idx.cellDeg))
	y = ((y % idx.wrapY) + idx.wrapY) % idx.wrapY

	return cellKey{
		x: int(math.Floor(p.Lat / idx.cellDeg)),
		y: y,
	}
}

// Insert adds a donor to the index, replacing any previous record with the
// same ID (the donor may have moved cells).
func (idx *Index) Insert(d domain.Donor) {
	if old, ok := idx.byID[d.ID]; ok {
		delete(idx.cells[old], d.ID)
		if len(idx.cells[old]) == 0 {
			delete(idx.cells, old)
		}
	}

	key := idx.keyFor(d.Location)
	bucket, ok := idx.cells[key]
	if !ok {
		bucket = make(map[domain.DonorID]domain.Donor)
		idx.cells[key] = bucket
	}
	bucket[d.ID] = d
	idx.byID[d.ID] = key
}

// Remove deletes a donor from the index. Removing an unknown ID is a no-op.
func (idx *Index) Remove(id domain.DonorID) {
	key, ok := idx.byID[id]
	if !ok {
		return
	}
	delete(idx.byID, id)
	delete(idx.cells[key], id)
	if len(idx.cells[key]) == 0 {
		delete(idx.cells, key)
	}
}

// Len returns the number of indexed donors.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// All returns every indexed donor. Order is unspecified.
func (idx *Index) All() []domain.Donor {
	out := make([]domain.Donor, 0, len(idx.byID))
	for _, bucket := range idx.cells {
		for _, d := range bucket {
			out = append(out, d)
		}
	}

	return out
}

// Query returns donors within radiusKm of center whose blood type is in
// types. A nil types set matches every blood type. The result carries no
// particular order; ranking happens later. An empty result is valid, not an
// error.
func (idx *Index) Query(center geo.Point, radiusKm float64, types map[domain.BloodType]struct{}) []domain.Donor {
	if radiusKm <= 0 {
		return nil
	}

	latSpan, lngSpan := geo.DegreeSpans(center.Lat, radiusKm)

	xMin := int(math.Floor((center.Lat - latSpan) / idx.cellDeg))
	xMax := int(math.Floor((center.Lat + latSpan) / idx.cellDeg))
	yMin := int(math.Floor((center.Lng - lngSpan) / idx.cellDeg))
	yMax := int(math.Floor((center.Lng + lngSpan) / idx.cellDeg))

	// near the poles the longitude span degenerates to the full circle;
	// cap the walk at one wrap so cells are visited once
	if yMax-yMin+1 > idx.wrapY {
		yMin = 0
		yMax = idx.wrapY - 1
	}

	var out []domain.Donor
	for x := xMin; x <= xMax; x++ {
		for yy := yMin; yy <= yMax; yy++ {
			y := ((yy % idx.wrapY) + idx.wrapY) % idx.wrapY
			bucket, ok := idx.cells[cellKey{x: x, y: y}]
			if !ok {
				continue
			}
			for _, d := range bucket {
				if types != nil {
					if _, ok := types[d.BloodType]; !ok {
						continue
					}
				}
				if geo.DistanceKm(center, d.Location) <= radiusKm {
					out = append(out, d)
				}
			}
		}
	}

	return out
}
