package registry_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/geoindex"
	"bloodlink/internal/registry"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

var center = geo.Point{Lat: 12.9716, Lng: 77.5946}

func donorAt(bt domain.BloodType, lat, lng float64) domain.Donor {
	return domain.Donor{
		ID:        domain.DonorID(uuid.New()),
		BloodType: bt,
		Location:  geo.Point{Lat: lat, Lng: lng},
		Available: true,
	}
}

func TestRegistry_UpsertGetRemove(t *testing.T) {
	r := registry.New(geoindex.DefaultCellSizeKm)

	d := donorAt(domain.BloodOPos, 12.9750, 77.6000)
	r.Upsert(d)
	require.Equal(t, 1, r.Len())

	got, ok := r.Get(d.ID)
	require.True(t, ok)
	require.Equal(t, d.ID, got.ID)

	d.Rating = 4.5
	r.Upsert(d)
	require.Equal(t, 1, r.Len())
	got, _ = r.Get(d.ID)
	require.InDelta(t, 4.5, got.Rating, 1e-9)

	r.Remove(d.ID)
	require.Equal(t, 0, r.Len())
	_, ok = r.Get(d.ID)
	require.False(t, ok)
}

func TestRegistry_Load(t *testing.T) {
	r := registry.New(geoindex.DefaultCellSizeKm)
	r.Upsert(donorAt(domain.BloodAPos, 1, 1))

	fresh := []domain.Donor{
		donorAt(domain.BloodOPos, 12.9750, 77.6000),
		donorAt(domain.BloodONeg, 12.9760, 77.6010),
	}
	r.Load(fresh)

	require.Equal(t, 2, r.Len())
	snap := r.Snapshot()
	require.Len(t, snap.FindCompatible(center, 10, domain.BloodABPos), 2)
}

func TestSnapshot_IsolatedFromMutations(t *testing.T) {
	r := registry.New(geoindex.DefaultCellSizeKm)

	d := donorAt(domain.BloodONeg, 12.9750, 77.6000)
	r.Upsert(d)

	snap := r.Snapshot()
	require.Equal(t, 1, snap.Len())

	// mutate the registry after the snapshot was taken
	r.Remove(d.ID)
	r.Upsert(donorAt(domain.BloodAPos, 12.9760, 77.6010))

	// the snapshot still sees the original state
	require.Equal(t, 1, snap.Len())
	_, ok := snap.Get(d.ID)
	require.True(t, ok)
	require.Len(t, snap.FindCompatible(center, 10, domain.BloodONeg), 1)
}

func TestSnapshot_FindCompatible(t *testing.T) {
	r := registry.New(geoindex.DefaultCellSizeKm)
	r.Upsert(donorAt(domain.BloodONeg, 12.9750, 77.6000))
	r.Upsert(donorAt(domain.BloodAPos, 12.9760, 77.6010))
	r.Upsert(donorAt(domain.BloodBNeg, 13.3500, 77.9000)) // ~55km away

	snap := r.Snapshot()

	// A- recipient accepts A- and O- only; only the nearby O- qualifies
	got := snap.FindCompatible(center, 10, domain.BloodANeg)
	require.Len(t, got, 1)
	require.Equal(t, domain.BloodONeg, got[0].BloodType)

	// widening the radius pulls in the distant B- for an AB+ recipient
	require.Len(t, snap.FindCompatible(center, 100, domain.BloodABPos), 3)
}

func TestSnapshot_VersionAdvances(t *testing.T) {
	r := registry.New(geoindex.DefaultCellSizeKm)

	v0 := r.Snapshot().Version()
	r.Upsert(donorAt(domain.BloodOPos, 12.9750, 77.6000))
	v1 := r.Snapshot().Version()

	require.Greater(t, v1, v0)
}
