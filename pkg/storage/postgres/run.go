package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/storage"
)

const runsTable = "pipeline_runs"

func (p *PgSQL) StoreRun(ctx context.Context, run domain.PipelineRun) (*domain.PipelineRun, error) {
	var pgRun PgRun
	if err := pgRun.FromDomain(run); err != nil {
		return nil, err
	}

	var row PgRun
	found, err := p.Builder.Insert(runsTable).
		Rows(pgRun).
		Returning(&PgRun{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not store run into pg: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("insert returned no row")
	}

	return row.ToDomain()
}

// UpdateRunByID updates a single run identified by its ID and returns the
// updated row. Only provided fields are changed.
func (p *PgSQL) UpdateRunByID(
	ctx context.Context,
	id domain.RunID,
	updates storage.RunUpdates,
) (*domain.PipelineRun, error) {
	rec := goqu.Record{}
	if updates.State != "" {
		rec["state"] = string(updates.State)
	}
	if updates.Candidates != nil {
		b, err := json.Marshal(updates.Candidates)
		if err != nil {
			return nil, fmt.Errorf("could not marshal candidates: %w", err)
		}

		rec["candidates"] = b
	}
	if updates.SearchRadiusKm != nil {
		rec["search_radius_km"] = *updates.SearchRadiusKm
	}
	if updates.FailureReason != nil {
		rec["failure_reason"] = *updates.FailureReason
	}
	if updates.FinishedAt != nil {
		rec["finished_at"] = *updates.FinishedAt
	}
	if len(rec) == 0 {
		return p.RunByID(ctx, id)
	}

	var row PgRun
	found, err := p.Builder.Update(runsTable).
		Set(rec).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Returning(&PgRun{}).Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not update run in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain()
}

// RunByID returns a run by its ID.
func (p *PgSQL) RunByID(ctx context.Context, id domain.RunID) (*domain.PipelineRun, error) {
	var row PgRun
	found, err := p.Builder.From(runsTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch run by id: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain()
}

// LatestRunByRequestID returns the most recent run for a request.
func (p *PgSQL) LatestRunByRequestID(ctx context.Context, requestID domain.RequestID) (*domain.PipelineRun, error) {
	var row PgRun
	found, err := p.Builder.From(runsTable).
		Where(goqu.I("request_id").Eq(uuid.UUID(requestID))).
		Order(goqu.I("started_at").Desc(), goqu.I("id").Desc()).
		Limit(1).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch latest run by request id: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain()
}

// RequestCancel sets the cancellation flag on a run. The flag only lands on
// non-terminal runs; the boolean result reports whether it was set.
func (p *PgSQL) RequestCancel(ctx context.Context, id domain.RunID) (bool, error) {
	res, err := p.Builder.Update(runsTable).
		Set(goqu.Record{"cancel_requested": true}).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("state").NotIn(
				string(domain.RunStateComplete),
				string(domain.RunStateCancelled),
				string(domain.RunStateFailed),
			),
		).Executor().ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("could not request run cancel in pg: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not read affected rows: %w", err)
	}

	return affected > 0, nil
}

// CancelRequested reads the cancellation flag for a run.
func (p *PgSQL) CancelRequested(ctx context.Context, id domain.RunID) (bool, error) {
	var row struct {
		CancelRequested bool `db:"cancel_requested"`
	}
	found, err := p.Builder.From(runsTable).
		Select(goqu.I("cancel_requested")).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return false, fmt.Errorf("could not fetch cancel flag from pg: %w", err)
	}
	if !found {
		return false, nil
	}

	return row.CancelRequested, nil
}
