// Package match turns a raw donor candidate set into a deterministically
// ranked list. Hard gates (availability, donation deferral) remove donors
// outright; survivors get a composite weighted score in [0,100] and a stable
// total order.
package match

import (
	"time"

	"bloodlink/pkg/domain"
)

const (
	// DefaultDeferralPeriod is the medical deferral window after a whole
	// blood donation. Donors inside it are excluded, not penalized.
	DefaultDeferralPeriod = 90 * 24 * time.Hour

	// experienceCap is the donation count at which the experience sub-score
	// saturates.
	experienceCap = 20

	// maxRating is the upper bound of a donor reliability rating.
	maxRating = 5.0
)

// Weights configures the composite score. Sub-scores are normalized to [0,1]
// before weighting; the weighted sum is scaled to [0,100]. The exact weights
// are tunable configuration, not fixed rules.
type Weights struct {
	// Proximity weights closeness to the request location.
	Proximity float64
	// Reliability weights the donor rating.
	Reliability float64
	// Experience weights the donation count, capped at experienceCap.
	Experience float64
	// VerifiedBonus is added flat for identity-verified donors.
	VerifiedBonus float64
}

// DefaultWeights returns the production scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Proximity:     0.45,
		Reliability:   0.25,
		Experience:    0.20,
		VerifiedBonus: 0.10,
	}
}

// Scorer computes composite match scores.
type Scorer struct {
	weights  Weights
	deferral time.Duration
}

// NewScorer creates a Scorer. A zero deferral falls back to
// DefaultDeferralPeriod; zero weights fall back to DefaultWeights.
func NewScorer(weights Weights, deferral time.Duration) Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if deferral <= 0 {
		deferral = DefaultDeferralPeriod
	}

	return Scorer{weights: weights, deferral: deferral}
}

// Eligible applies the hard gates: the donor must be available and outside
// the deferral window. Gated donors never reach scoring or ranking.
func (s Scorer) Eligible(d domain.Donor, now time.Time) bool {
	return d.EligibleAt(now, s.deferral)
}

// Score computes the composite score for a donor at the given distance.
// radiusCapKm is the search radius that produced the candidate; proximity is
// normalized against it. The result is clamped to [0,100].
func (s Scorer) Score(d domain.Donor, distanceKm, radiusCapKm float64) float64 {
	proximity := 0.0
	if radiusCapKm > 0 {
		proximity = 1 - distanceKm/radiusCapKm
		if proximity < 0 {
			proximity = 0
		}
	}

	reliability := d.Rating / maxRating
	if reliability > 1 {
		reliability = 1
	} else if reliability < 0 {
		reliability = 0
	}

	experience := float64(d.DonationCount) / experienceCap
	if experience > 1 {
		experience = 1
	}

	sum := proximity*s.weights.Proximity +
		reliability*s.weights.Reliability +
		experience*s.weights.Experience
	if d.Verified {
		sum += s.weights.VerifiedBonus
	}

	score := sum * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}

	return score
}
