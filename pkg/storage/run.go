package storage

import (
	"context"
	"time"

	"bloodlink/pkg/domain"
)

// RunUpdates describes a set of optional fields that can be applied to a
// pipeline run during an update. Only provided fields are changed.
type RunUpdates struct {
	// State is the new lifecycle state to set.
	State domain.RunState
	// Candidates, when non-nil, replaces the stored candidate list.
	Candidates []domain.MatchCandidate
	// SearchRadiusKm, when provided, records the final search radius.
	SearchRadiusKm *float64
	// FailureReason, when provided, sets the failure detail text.
	FailureReason *string
	// FinishedAt, when provided, marks the run terminal at that time.
	FinishedAt *time.Time
}

// RunStorage defines persistence operations on pipeline runs, including the
// cooperative cancellation flag runs poll at stage boundaries.
type RunStorage interface {
	// StoreRun inserts a run and returns the stored row.
	StoreRun(ctx context.Context, run domain.PipelineRun) (*domain.PipelineRun, error)
	// UpdateRunByID updates a single run and returns the updated row.
	// Returns nil when the run does not exist.
	UpdateRunByID(ctx context.Context, id domain.RunID, updates RunUpdates) (*domain.PipelineRun, error)
	// RunByID fetches a run by ID. Returns nil when not found.
	RunByID(ctx context.Context, id domain.RunID) (*domain.PipelineRun, error)
	// LatestRunByRequestID returns the most recent run for a request, or nil
	// when the request has never been processed.
	LatestRunByRequestID(ctx context.Context, requestID domain.RequestID) (*domain.PipelineRun, error)
	// RequestCancel sets the cancellation flag on a run. Returns false when
	// the run is already terminal or does not exist.
	RequestCancel(ctx context.Context, id domain.RunID) (bool, error)
	// CancelRequested reads the cancellation flag for a run.
	CancelRequested(ctx context.Context, id domain.RunID) (bool, error)
}
