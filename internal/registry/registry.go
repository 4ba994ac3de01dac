// Package registry holds the in-memory donor registry backing the matching
// engine. Mutations go through the registry under a write lock; readers take
// immutable snapshots, so a pipeline run sees a frozen donor set no matter
// what the registry does concurrently.
package registry

import (
	"sync"

	"bloodlink/internal/compat"
	"bloodlink/internal/geoindex"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

// Registry is the live donor set plus its spatial index. Safe for concurrent
// use.
type Registry struct {
	mu sync.RWMutex

	cellSizeKm float64
	donors     map[domain.DonorID]domain.Donor
	index      *geoindex.Index
	version    uint64
}

// New creates an empty registry whose spatial index uses the given cell size.
func New(cellSizeKm float64) *Registry {
	return &Registry{
		cellSizeKm: cellSizeKm,
		donors:     make(map[domain.DonorID]domain.Donor),
		index:      geoindex.New(cellSizeKm),
	}
}

// Load replaces the registry contents wholesale. Used at startup to hydrate
// from storage.
func (r *Registry) Load(donors []domain.Donor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.donors = make(map[domain.DonorID]domain.Donor, len(donors))
	r.index = geoindex.New(r.cellSizeKm)
	for _, d := range donors {
		r.donors[d.ID] = d
		r.index.Insert(d)
	}
	r.version++
}

// Upsert inserts or replaces a donor.
func (r *Registry) Upsert(d domain.Donor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.donors[d.ID] = d
	r.index.Insert(d)
	r.version++
}

// Remove deletes a donor. Unknown IDs are a no-op.
func (r *Registry) Remove(id domain.DonorID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.donors[id]; !ok {
		return
	}
	delete(r.donors, id)
	r.index.Remove(id)
	r.version++
}

// Get returns a donor by ID.
func (r *Registry) Get(id domain.DonorID) (domain.Donor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.donors[id]

	return d, ok
}

// Len returns the number of registered donors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.donors)
}

// Snapshot freezes the current donor set into a private copy with its own
// spatial index. Copying is O(n) but runs are rare compared to lookups and
// the copy frees runs from holding any lock.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	donors := make(map[domain.DonorID]domain.Donor, len(r.donors))
	idx := geoindex.New(r.cellSizeKm)
	for id, d := range r.donors {
		donors[id] = d
		idx.Insert(d)
	}

	return &Snapshot{donors: donors, index: idx, version: r.version}
}

// Snapshot is an immutable view of the registry at a point in time. A
// pipeline run queries its snapshot exclusively, so registry updates made
// mid-run never leak into the run's candidate set.
type Snapshot struct {
	donors  map[domain.DonorID]domain.Donor
	index   *geoindex.Index
	version uint64
}

// Version identifies the registry state the snapshot was taken from.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of donors in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.donors)
}

// Get returns a donor by ID.
func (s *Snapshot) Get(id domain.DonorID) (domain.Donor, bool) {
	d, ok := s.donors[id]

	return d, ok
}

// All returns every donor in the snapshot. Order is unspecified.
func (s *Snapshot) All() []domain.Donor {
	out := make([]domain.Donor, 0, len(s.donors))
	for _, d := range s.donors {
		out = append(out, d)
	}

	return out
}

// FindCompatible returns donors within radiusKm of center whose blood type
// can serve the given recipient type.
func (s *Snapshot) FindCompatible(center geo.Point, radiusKm float64, recipient domain.BloodType) []domain.Donor {
	return s.index.Query(center, radiusKm, compat.DonorSet(recipient))
}
