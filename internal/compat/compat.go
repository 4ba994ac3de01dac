// Package compat implements ABO/Rh transfusion compatibility. It is a pure
// lookup table: a donor type D can give to recipient R iff D's ABO group is O
// or matches R's, and D is Rh-negative or R is Rh-positive.
package compat

import "bloodlink/pkg/domain"

// donorsByRecipient enumerates, per recipient type, the donor types that may
// give to it. The table is the single authority on compatibility; nothing
// else in the engine encodes these rules.
var donorsByRecipient = map[domain.BloodType][]domain.BloodType{ //nolint: gochecknoglobals
	domain.BloodAPos:  {domain.BloodAPos, domain.BloodANeg, domain.BloodOPos, domain.BloodONeg},
	domain.BloodANeg:  {domain.BloodANeg, domain.BloodONeg},
	domain.BloodBPos:  {domain.BloodBPos, domain.BloodBNeg, domain.BloodOPos, domain.BloodONeg},
	domain.BloodBNeg:  {domain.BloodBNeg, domain.BloodONeg},
	domain.BloodABPos: domain.AllBloodTypes(),
	domain.BloodABNeg: {domain.BloodANeg, domain.BloodBNeg, domain.BloodABNeg, domain.BloodONeg},
	domain.BloodOPos:  {domain.BloodOPos, domain.BloodONeg},
	domain.BloodONeg:  {domain.BloodONeg},
}

// CompatibleDonors returns the donor blood types that may give to the
// recipient type, in a fixed deterministic order. The result is a fresh slice
// the caller may mutate. Unknown recipient types yield nil.
func CompatibleDonors(recipient domain.BloodType) []domain.BloodType {
	donors, ok := donorsByRecipient[recipient]
	if !ok {
		return nil
	}

	out := make([]domain.BloodType, len(donors))
	copy(out, donors)

	return out
}

// DonorSet returns the compatible donor types for a recipient as a set for
// O(1) membership checks during spatial filtering.
func DonorSet(recipient domain.BloodType) map[domain.BloodType]struct{} {
	donors := donorsByRecipient[recipient]
	set := make(map[domain.BloodType]struct{}, len(donors))
	for _, d := range donors {
		set[d] = struct{}{}
	}

	return set
}

// CanDonate reports whether a donor of type donor may give to a recipient of
// type recipient.
func CanDonate(donor, recipient domain.BloodType) bool {
	for _, d := range donorsByRecipient[recipient] {
		if d == donor {
			return true
		}
	}

	return false
}
