package match

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"bloodlink/pkg/domain"
)

// Candidate pairs a donor with its computed distance and score while ranking
// is in progress. The pipeline converts ranked candidates into the slimmer
// domain.MatchCandidate for its run snapshot.
type Candidate struct {
	Donor      domain.Donor
	DistanceKm float64
	Score      float64
}

// Rank orders candidates descending by score with deterministic tie-breaks:
// ascending distance, then descending donation count, then donor ID. The
// input slice is sorted in place and returned; identical inputs always yield
// identical orderings.
func Rank(candidates []Candidate) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Donor.DonationCount != b.Donor.DonationCount {
			return a.Donor.DonationCount > b.Donor.DonationCount
		}

		idA := uuid.UUID(a.Donor.ID)
		idB := uuid.UUID(b.Donor.ID)

		return bytes.Compare(idA[:], idB[:]) < 0
	})

	return candidates
}
