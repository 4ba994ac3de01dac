package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/storage"
)

const donorsTable = "donors"

func (p *PgSQL) StoreDonors(ctx context.Context, donors ...domain.Donor) ([]domain.Donor, error) {
	if len(donors) == 0 {
		return nil, nil
	}

	var result []PgDonor
	if err := p.Builder.Insert(donorsTable).
		Rows(domainDonorsToPg(donors)).
		Returning(&PgDonor{}).
		Executor().ScanStructsContext(ctx, &result); err != nil {
		return nil, fmt.Errorf("could not store donors into pg: %w", err)
	}

	return pgDonorsToDomain(result), nil
}

// UpdateDonorByID updates a single donor identified by its ID and returns
// the updated row. Soft-deleted rows are ignored and updated_at is set
// automatically. Only provided fields are changed.
func (p *PgSQL) UpdateDonorByID(
	ctx context.Context,
	id domain.DonorID,
	updates storage.DonorUpdates,
) (*domain.Donor, error) {
	rec := goqu.Record{
		"updated_at": goqu.L("CURRENT_TIMESTAMP"),
	}
	if updates.Available != nil {
		rec["available"] = *updates.Available
	}
	if updates.Verified != nil {
		rec["verified"] = *updates.Verified
	}
	if updates.Location != nil {
		rec["lat"] = updates.Location.Lat
		rec["lng"] = updates.Location.Lng
	}
	if updates.Rating != nil {
		rec["rating"] = *updates.Rating
	}
	if updates.DonationCount != nil {
		rec["donation_count"] = *updates.DonationCount
	}
	if updates.LastDonationAt != nil {
		rec["last_donation_at"] = *updates.LastDonationAt
	}

	var row PgDonor
	found, err := p.Builder.Update(donorsTable).
		Set(rec).Where(
		goqu.I("id").Eq(uuid.UUID(id)),
		goqu.I("deleted_at").IsNull(),
	).Returning(&PgDonor{}).Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not update donor in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	d := row.ToDomain()

	return &d, nil
}

// DeleteDonor performs a soft delete by setting the deleted_at timestamp for
// the given donor, returning the deleted record.
func (p *PgSQL) DeleteDonor(ctx context.Context, id domain.DonorID) (*domain.Donor, error) {
	var row PgDonor
	found, err := p.Builder.Update(donorsTable).
		Set(goqu.Record{
			"deleted_at": goqu.L("CURRENT_TIMESTAMP"),
		}).Where(
		goqu.I("id").Eq(uuid.UUID(id)),
		goqu.I("deleted_at").IsNull(),
	).Returning(&PgDonor{}).Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not delete donor in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	d := row.ToDomain()

	return &d, nil
}

// DonorByID returns a donor by its ID, excluding soft-deleted rows.
func (p *PgSQL) DonorByID(ctx context.Context, id domain.DonorID) (*domain.Donor, error) {
	var row PgDonor
	found, err := p.Builder.From(donorsTable).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("deleted_at").IsNull(),
		).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch donor by id: %w", err)
	}
	if !found {
		return nil, nil
	}

	d := row.ToDomain()

	return &d, nil
}

// Donors returns a page of donors created before the optional cursor time.
// Results are ordered by created_at DESC, id DESC.
func (p *PgSQL) Donors(ctx context.Context, cursor time.Time, limit uint) (storage.DonorPage, error) {
	w := []goqu.Expression{
		goqu.I("deleted_at").IsNull(),
	}
	if !cursor.IsZero() {
		w = append(w, goqu.I("created_at").Lt(cursor))
	}

	// fetch one extra to determine if there is a next page
	fetch := limit + 1
	ds := p.Builder.From(donorsTable).
		Where(w...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		Limit(fetch)

	var rows []PgDonor
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return storage.DonorPage{}, fmt.Errorf("could not fetch donors from pg: %w", err)
	}

	var nextCursor *time.Time
	if uint(len(rows)) > limit {
		trimmed := rows[:limit]
		nextCursor = &trimmed[len(trimmed)-1].CreatedAt
		rows = trimmed
	}

	return storage.DonorPage{
		Donors:     pgDonorsToDomain(rows),
		NextCursor: nextCursor,
	}, nil
}

// ActiveDonors returns every non-deleted donor, used to hydrate the
// in-memory registry at startup.
func (p *PgSQL) ActiveDonors(ctx context.Context) ([]domain.Donor, error) {
	var rows []PgDonor
	if err := p.Builder.From(donorsTable).
		Where(goqu.I("deleted_at").IsNull()).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch active donors from pg: %w", err)
	}

	return pgDonorsToDomain(rows), nil
}
