package storage

import (
	"context"
	"time"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

// DonorUpdates describes a set of optional fields that can be applied to an
// existing donor during an update. Only non-nil fields will be updated.
type DonorUpdates struct {
	// Available toggles the donor's willingness to be contacted.
	Available *bool
	// Verified sets the identity verification flag.
	Verified *bool
	// Location replaces the donor's registered position.
	Location *geo.Point
	// Rating replaces the donor's reliability rating.
	Rating *float64
	// DonationCount replaces the completed donation count.
	DonationCount *int
	// LastDonationAt sets the time of the most recent donation.
	LastDonationAt *time.Time
}

// DonorPage groups a page of donors together with an optional NextCursor
// used for pagination.
type DonorPage struct {
	// Donors contains the current page of donor records.
	Donors []domain.Donor
	// NextCursor points to the timestamp to be used as the cursor for
	// fetching the next page. It is nil when there is no next page.
	NextCursor *time.Time
}

// DonorStorage defines CRUD and query operations on the donor registry.
// Implementations should handle soft-deletes where applicable.
type DonorStorage interface {
	// StoreDonors inserts one or more donors and returns the stored rows as
	// they exist in the database (including generated fields).
	StoreDonors(ctx context.Context, donors ...domain.Donor) ([]domain.Donor, error)
	// UpdateDonorByID updates a single donor and returns the updated row.
	// Soft-deleted rows are ignored and updated_at is set automatically.
	// Returns nil when the donor does not exist.
	UpdateDonorByID(ctx context.Context, id domain.DonorID, updates DonorUpdates) (*domain.Donor, error)
	// DeleteDonor performs a soft delete and returns the deleted donor, or
	// nil if it was not found.
	DeleteDonor(ctx context.Context, id domain.DonorID) (*domain.Donor, error)
	// DonorByID fetches a donor by ID, excluding soft-deleted records.
	// Returns nil when not found.
	DonorByID(ctx context.Context, id domain.DonorID) (*domain.Donor, error)
	// Donors returns a page of donors created before the optional cursor
	// time, limited by the given limit.
	Donors(ctx context.Context, cursor time.Time, limit uint) (DonorPage, error)
	// ActiveDonors returns every non-deleted donor. Used to hydrate the
	// in-memory registry at startup.
	ActiveDonors(ctx context.Context) ([]domain.Donor, error)
}
