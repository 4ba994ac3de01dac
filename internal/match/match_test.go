package match_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/match"
	"bloodlink/pkg/domain"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func donor(mut func(*domain.Donor)) domain.Donor {
	d := domain.Donor{
		ID:        domain.DonorID(uuid.New()),
		BloodType: domain.BloodOPos,
		Available: true,
		Rating:    5,
	}
	if mut != nil {
		mut(&d)
	}

	return d
}

func TestEligible_HardGates(t *testing.T) {
	s := match.NewScorer(match.DefaultWeights(), 0)

	require.True(t, s.Eligible(donor(nil), now))

	require.False(t, s.Eligible(donor(func(d *domain.Donor) {
		d.Available = false
	}), now), "unavailable donors are excluded outright")

	require.False(t, s.Eligible(donor(func(d *domain.Donor) {
		d.LastDonationAt = now.Add(-30 * 24 * time.Hour)
	}), now), "donors inside the 90-day deferral are excluded")

	require.True(t, s.Eligible(donor(func(d *domain.Donor) {
		d.LastDonationAt = now.Add(-120 * 24 * time.Hour)
	}), now))

	require.True(t, s.Eligible(donor(func(d *domain.Donor) {
		d.LastDonationAt = now.Add(-90 * 24 * time.Hour)
	}), now), "exactly 90 days ago is eligible again")
}

func TestScore_Range(t *testing.T) {
	s := match.NewScorer(match.DefaultWeights(), 0)

	best := donor(func(d *domain.Donor) {
		d.Rating = 5
		d.DonationCount = 20
		d.Verified = true
	})
	require.InDelta(t, 100, s.Score(best, 0, 10), 1e-9)

	worst := donor(func(d *domain.Donor) {
		d.Rating = 0
		d.DonationCount = 0
		d.Verified = false
	})
	require.InDelta(t, 0, s.Score(worst, 10, 10), 1e-9)
}

func TestScore_Components(t *testing.T) {
	s := match.NewScorer(match.DefaultWeights(), 0)

	d := donor(func(d *domain.Donor) {
		d.Rating = 2.5       // reliability 0.5
		d.DonationCount = 10 // experience 0.5
		d.Verified = false
	})

	// proximity 0.5 at half the radius
	// 0.5*0.45 + 0.5*0.25 + 0.5*0.20 = 0.45 -> 45
	require.InDelta(t, 45, s.Score(d, 5, 10), 1e-9)

	d.Verified = true
	require.InDelta(t, 55, s.Score(d, 5, 10), 1e-9)
}

func TestScore_ExperienceCap(t *testing.T) {
	s := match.NewScorer(match.DefaultWeights(), 0)

	at20 := donor(func(d *domain.Donor) { d.DonationCount = 20 })
	at500 := donor(func(d *domain.Donor) { d.DonationCount = 500 })

	require.InDelta(t, s.Score(at20, 5, 10), s.Score(at500, 5, 10), 1e-9,
		"donation count beyond 20 must not add score")
}

func TestScore_DistanceBeyondRadiusClampsProximity(t *testing.T) {
	s := match.NewScorer(match.DefaultWeights(), 0)

	d := donor(func(d *domain.Donor) { d.Rating = 5 })

	atEdge := s.Score(d, 10, 10)
	beyond := s.Score(d, 15, 10)
	require.InDelta(t, atEdge, beyond, 1e-9, "proximity floors at zero, never negative")
}

func TestRank_ScoreDescending(t *testing.T) {
	cands := []match.Candidate{
		{Donor: donor(nil), DistanceKm: 3, Score: 50},
		{Donor: donor(nil), DistanceKm: 8, Score: 90},
		{Donor: donor(nil), DistanceKm: 1, Score: 70},
	}

	ranked := match.Rank(cands)
	require.Equal(t, []float64{90, 70, 50}, []float64{ranked[0].Score, ranked[1].Score, ranked[2].Score})
}

func TestRank_TieBreaks(t *testing.T) {
	closer := match.Candidate{Donor: donor(nil), DistanceKm: 2, Score: 80}
	farther := match.Candidate{Donor: donor(nil), DistanceKm: 6, Score: 80}

	ranked := match.Rank([]match.Candidate{farther, closer})
	require.Equal(t, closer.Donor.ID, ranked[0].Donor.ID, "equal score: closer wins")

	veteran := match.Candidate{
		Donor:      donor(func(d *domain.Donor) { d.DonationCount = 15 }),
		DistanceKm: 4, Score: 80,
	}
	rookie := match.Candidate{
		Donor:      donor(func(d *domain.Donor) { d.DonationCount = 2 }),
		DistanceKm: 4, Score: 80,
	}

	ranked = match.Rank([]match.Candidate{rookie, veteran})
	require.Equal(t, veteran.Donor.ID, ranked[0].Donor.ID, "equal score and distance: more donations win")
}

func TestRank_Deterministic(t *testing.T) {
	a := match.Candidate{Donor: donor(nil), DistanceKm: 4, Score: 80}
	b := match.Candidate{Donor: donor(nil), DistanceKm: 4, Score: 80}

	first := match.Rank([]match.Candidate{a, b})
	second := match.Rank([]match.Candidate{b, a})

	require.Equal(t, first[0].Donor.ID, second[0].Donor.ID,
		"fully tied candidates must order by donor ID regardless of input order")
	require.Equal(t, first[1].Donor.ID, second[1].Donor.ID)
}
