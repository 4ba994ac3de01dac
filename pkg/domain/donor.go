package domain

import (
	"time"

	"github.com/google/uuid"

	"bloodlink/pkg/geo"
)

// DonorID uniquely identifies a registered donor.
// It wraps uuid.UUID to provide type safety at the domain layer.
type DonorID uuid.UUID

func (id DonorID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the ID in canonical UUID form so JSON documents carry
// readable IDs instead of byte arrays.
func (id DonorID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

// UnmarshalText parses a canonical UUID string.
func (id *DonorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err //nolint: wrapcheck
	}
	*id = DonorID(u)

	return nil
}

// Donor is a registered blood donor as held by the donor registry. The
// matching engine only ever sees read-only snapshots of these records; a
// donor's blood type never changes for the duration of a pipeline run even if
// the registry is updated concurrently.
type Donor struct {
	// ID is the unique identifier of the donor.
	ID DonorID `json:"id"`

	// BloodType is the donor's ABO/Rh group.
	BloodType BloodType `json:"bloodType"`
	// Location is the donor's registered position.
	Location geo.Point `json:"location"`

	// Available indicates whether the donor is currently willing to be
	// contacted. Unavailable donors are excluded from matching entirely.
	Available bool `json:"available"`
	// Verified indicates the donor passed identity verification.
	Verified bool `json:"verified"`
	// Rating is the donor's reliability rating in [0,5].
	Rating float64 `json:"rating"`
	// DonationCount is the number of completed donations.
	DonationCount int `json:"donationCount"`
	// LastDonationAt is when the donor last gave blood; zero means never.
	// Donors inside the medical deferral window are excluded from matching.
	LastDonationAt time.Time `json:"lastDonationAt"`

	// CreatedAt is when the donor registered.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the donor record last changed.
	UpdatedAt time.Time `json:"updatedAt"`
	// DeletedAt marks when the donor was soft-deleted; zero value means not deleted.
	DeletedAt time.Time `json:"-"`
}

// EligibleAt reports whether the donor may donate at the given time: they
// must be available and outside the deferral window since their last
// donation. A zero LastDonationAt counts as eligible.
func (d Donor) EligibleAt(now time.Time, deferral time.Duration) bool {
	if !d.Available {
		return false
	}
	if d.LastDonationAt.IsZero() {
		return true
	}

	return now.Sub(d.LastDonationAt) >= deferral
}
