package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

type PgDonor struct {
	ID uuid.UUID `db:"id" goqu:"skipinsert"`

	BloodType string  `db:"blood_type"`
	Lat       float64 `db:"lat"`
	Lng       float64 `db:"lng"`

	Available      bool         `db:"available"`
	Verified       bool         `db:"verified"`
	Rating         float64      `db:"rating"`
	DonationCount  int          `db:"donation_count"`
	LastDonationAt sql.NullTime `db:"last_donation_at"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
	DeletedAt sql.NullTime `db:"deleted_at" goqu:"skipinsert"`
}

func (p *PgDonor) ToDomain() domain.Donor {
	return domain.Donor{
		ID:             domain.DonorID(p.ID),
		BloodType:      domain.BloodType(p.BloodType),
		Location:       geo.Point{Lat: p.Lat, Lng: p.Lng},
		Available:      p.Available,
		Verified:       p.Verified,
		Rating:         p.Rating,
		DonationCount:  p.DonationCount,
		LastDonationAt: p.LastDonationAt.Time,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt.Time,
		DeletedAt:      p.DeletedAt.Time,
	}
}

func (p *PgDonor) FromDomain(d domain.Donor) {
	*p = PgDonor{
		ID:            uuid.UUID(d.ID),
		BloodType:     string(d.BloodType),
		Lat:           d.Location.Lat,
		Lng:           d.Location.Lng,
		Available:     d.Available,
		Verified:      d.Verified,
		Rating:        d.Rating,
		DonationCount: d.DonationCount,
		LastDonationAt: sql.NullTime{
			Time:  d.LastDonationAt,
			Valid: !d.LastDonationAt.IsZero(),
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  d.UpdatedAt,
			Valid: !d.UpdatedAt.IsZero(),
		},
		DeletedAt: sql.NullTime{
			Time:  d.DeletedAt,
			Valid: !d.DeletedAt.IsZero(),
		},
	}
}

func domainDonorsToPg(donors []domain.Donor) []PgDonor {
	out := make([]PgDonor, len(donors))
	for i := range out {
		out[i].FromDomain(donors[i])
	}

	return out
}

func pgDonorsToDomain(donors []PgDonor) []domain.Donor {
	out := make([]domain.Donor, 0, len(donors))
	for i := range donors {
		out = append(out, donors[i].ToDomain())
	}

	return out
}

type PgRequest struct {
	ID          uuid.UUID `db:"id" goqu:"skipinsert"`
	RequesterID uuid.UUID `db:"requester_id"`

	BloodType string  `db:"blood_type"`
	Lat       float64 `db:"lat"`
	Lng       float64 `db:"lng"`
	Units     int     `db:"units"`
	Urgency   string  `db:"urgency"`

	CreatedAt time.Time `db:"created_at" goqu:"skipinsert"`
}

func (p *PgRequest) ToDomain() domain.BloodRequest {
	return domain.BloodRequest{
		ID:          domain.RequestID(p.ID),
		RequesterID: domain.RequesterID(p.RequesterID),
		BloodType:   domain.BloodType(p.BloodType),
		Location:    geo.Point{Lat: p.Lat, Lng: p.Lng},
		Units:       p.Units,
		Urgency:     domain.Urgency(p.Urgency),
		CreatedAt:   p.CreatedAt,
	}
}

func (p *PgRequest) FromDomain(req domain.BloodRequest) {
	*p = PgRequest{
		ID:          uuid.UUID(req.ID),
		RequesterID: uuid.UUID(req.RequesterID),
		BloodType:   string(req.BloodType),
		Lat:         req.Location.Lat,
		Lng:         req.Location.Lng,
		Units:       req.Units,
		Urgency:     string(req.Urgency),
		CreatedAt:   req.CreatedAt,
	}
}

type PgRun struct {
	ID        uuid.UUID `db:"id" goqu:"skipinsert"`
	RequestID uuid.UUID `db:"request_id"`

	State          string          `db:"state"`
	Candidates     json.RawMessage `db:"candidates" goqu:"skipinsert"`
	SearchRadiusKm float64         `db:"search_radius_km"`
	FailureReason  sql.NullString  `db:"failure_reason" goqu:"skipinsert"`

	StartedAt       time.Time    `db:"started_at"`
	FinishedAt      sql.NullTime `db:"finished_at" goqu:"skipinsert"`
	CancelRequested bool         `db:"cancel_requested"`
}

func (p *PgRun) ToDomain() (*domain.PipelineRun, error) {
	var candidates []domain.MatchCandidate
	if len(p.Candidates) > 0 {
		if err := json.Unmarshal(p.Candidates, &candidates); err != nil {
			return nil, fmt.Errorf("could not unmarshal candidates: %w", err)
		}
	}

	return &domain.PipelineRun{
		ID:              domain.RunID(p.ID),
		RequestID:       domain.RequestID(p.RequestID),
		State:           domain.RunState(p.State),
		Candidates:      candidates,
		SearchRadiusKm:  p.SearchRadiusKm,
		FailureReason:   p.FailureReason.String,
		StartedAt:       p.StartedAt,
		FinishedAt:      p.FinishedAt.Time,
		CancelRequested: p.CancelRequested,
	}, nil
}

func (p *PgRun) FromDomain(run domain.PipelineRun) error {
	candidates, err := json.Marshal(run.Candidates)
	if err != nil {
		return fmt.Errorf("could not marshal candidates: %w", err)
	}

	*p = PgRun{
		ID:             uuid.UUID(run.ID),
		RequestID:      uuid.UUID(run.RequestID),
		State:          string(run.State),
		Candidates:     candidates,
		SearchRadiusKm: run.SearchRadiusKm,
		FailureReason: sql.NullString{
			String: run.FailureReason,
			Valid:  run.FailureReason != "",
		},
		StartedAt: run.StartedAt,
		FinishedAt: sql.NullTime{
			Time:  run.FinishedAt,
			Valid: !run.FinishedAt.IsZero(),
		},
		CancelRequested: run.CancelRequested,
	}

	return nil
}
