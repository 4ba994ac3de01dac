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

const requestsTable = "blood_requests"

func (p *PgSQL) StoreRequest(ctx context.Context, req domain.BloodRequest) (*domain.BloodRequest, error) {
	var pgReq PgRequest
	pgReq.FromDomain(req)

	var row PgRequest
	found, err := p.Builder.Insert(requestsTable).
		Rows(pgReq).
		Returning(&PgRequest{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not store request into pg: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("insert returned no row")
	}

	out := row.ToDomain()

	return &out, nil
}

// RequestByID returns a blood request by its ID.
func (p *PgSQL) RequestByID(ctx context.Context, id domain.RequestID) (*domain.BloodRequest, error) {
	var row PgRequest
	found, err := p.Builder.From(requestsTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch request by id: %w", err)
	}
	if !found {
		return nil, nil
	}

	out := row.ToDomain()

	return &out, nil
}

// RequesterRequests returns a page of requests submitted by a requester,
// created before the optional cursor time. Results are ordered by created_at
// DESC, id DESC.
func (p *PgSQL) RequesterRequests(ctx context.Context,
	requesterID domain.RequesterID,
	cursor time.Time,
	limit uint) (storage.RequestPage, error) {
	w := []goqu.Expression{
		goqu.I("requester_id").Eq(uuid.UUID(requesterID)),
	}
	if !cursor.IsZero() {
		w = append(w, goqu.I("created_at").Lt(cursor))
	}

	// fetch one extra to determine if there is a next page
	fetch := limit + 1
	ds := p.Builder.From(requestsTable).
		Where(w...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		Limit(fetch)

	var rows []PgRequest
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return storage.RequestPage{}, fmt.Errorf("could not fetch requester requests from pg: %w", err)
	}

	var nextCursor *time.Time
	if uint(len(rows)) > limit {
		trimmed := rows[:limit]
		nextCursor = &trimmed[len(trimmed)-1].CreatedAt
		rows = trimmed
	}

	out := make([]domain.BloodRequest, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}

	return storage.RequestPage{
		Requests:   out,
		NextCursor: nextCursor,
	}, nil
}
