// Package cluster aggregates donor locations into map grid cells for
// heat-map style rendering. Clustering is a pure function of its inputs:
// the same donors, viewport and zoom always produce the same cells.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

const (
	// MinZoom and MaxZoom bound the accepted zoom range; values outside are
	// clamped, not rejected.
	MinZoom = 0
	MaxZoom = 20

	// baseCells is the number of grid columns spanning 360 degrees at zoom 0.
	baseCells = 32
)

// CellSizeDeg returns the grid cell edge length in degrees for a zoom level.
// Each zoom step halves the edge, so cells shrink as the map zooms in.
func CellSizeDeg(zoom int) float64 {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}

	return 360 / (baseCells * math.Exp2(float64(zoom)))
}

// Cluster buckets the donors inside the viewport into grid cells at the
// given zoom level. Returned cells are sorted by grid key so the output is
// deterministic. An invalid viewport yields no cells.
func Cluster(donors []domain.Donor, viewport geo.Bounds, zoom int) []domain.ClusterCell {
	if !viewport.Valid() {
		return nil
	}

	cellDeg := CellSizeDeg(zoom)
	buckets := make(map[string]*bucket)

	for _, d := range donors {
		if !viewport.Contains(d.Location) {
			continue
		}

		x := int(math.Floor(d.Location.Lng / cellDeg))
		y := int(math.Floor(d.Location.Lat / cellDeg))
		key := fmt.Sprintf("%d:%d", x, y)

		b, ok := buckets[key]
		if !ok {
			b = &bucket{types: make(map[domain.BloodType]struct{})}
			buckets[key] = b
		}
		b.add(d)
	}

	out := make([]domain.ClusterCell, 0, len(buckets))
	for key, b := range buckets {
		out = append(out, b.cell(key))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GridKey < out[j].GridKey
	})

	return out
}

type bucket struct {
	sumLat float64
	sumLng float64
	ids    []domain.DonorID
	types  map[domain.BloodType]struct{}
}

func (b *bucket) add(d domain.Donor) {
	b.sumLat += d.Location.Lat
	b.sumLng += d.Location.Lng
	b.ids = append(b.ids, d.ID)
	b.types[d.BloodType] = struct{}{}
}

func (b *bucket) cell(key string) domain.ClusterCell {
	n := float64(len(b.ids))

	types := make([]domain.BloodType, 0, len(b.types))
	for bt := range b.types {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	ids := make([]domain.DonorID, len(b.ids))
	copy(ids, b.ids)
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	return domain.ClusterCell{
		GridKey:    key,
		Centroid:   geo.Point{Lat: b.sumLat / n, Lng: b.sumLng / n},
		DonorIDs:   ids,
		BloodTypes: types,
		Count:      len(ids),
	}
}
