package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloodlink/internal/cluster"
	"bloodlink/internal/config"
	"bloodlink/internal/pipeline"
	"bloodlink/internal/registry"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/metrics"
	"bloodlink/pkg/serrors"
	"bloodlink/pkg/storage"
)

// Options configure job enqueueing for the matching service. These settings
// are typically derived from application configuration.
type Options struct {
	// MaxAttempts is the maximum number of attempts the background worker
	// should make when processing a matching job before giving up.
	MaxAttempts int
	// UniqueJobPeriod is the lookback window during which a second job for
	// the same request is considered a duplicate.
	UniqueJobPeriod time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxAttempts:     cfg.Matching.MaxAttempts,
		UniqueJobPeriod: cfg.Matching.UniqueJobPeriod,
	}
}

// service is the concrete implementation of the Service interface. It
// coordinates persistence, the in-memory donor registry and the pipeline.
type service struct {
	options  Options
	storage  storage.Storage
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	metrics  *metrics.Engine
}

// New creates a new Service backed by the provided storage, registry and
// pipeline. A nil metrics engine disables instrumentation.
func New(
	strg storage.Storage,
	reg *registry.Registry,
	pipe *pipeline.Pipeline,
	m *metrics.Engine,
	options Options,
) Service {
	return &service{
		options:  options,
		storage:  strg,
		registry: reg,
		pipeline: pipe,
		metrics:  m,
	}
}

// SubmitRequest stores the request and its initial run, then enqueues the
// matching job in the same transaction. When another job is already active
// for the request, the whole submission rolls back with a conflict.
func (s *service) SubmitRequest(
	ctx context.Context,
	req domain.BloodRequest,
) (*domain.BloodRequest, *domain.PipelineRun, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid blood request")
	}

	var (
		stored *domain.BloodRequest
		run    *domain.PipelineRun
	)
	if err := s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		stored, err = tx.StoreRequest(ctx, req)
		if err != nil {
			return fmt.Errorf("could not store request: %w", err)
		}

		run, err = tx.StoreRun(ctx, domain.PipelineRun{
			RequestID: stored.ID,
			State:     domain.RunStateValidating,
			StartedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("could not store run: %w", err)
		}

		added, err := tx.AddJob(ctx, JobArgs{
			RequestID:       stored.ID.String(),
			RunID:           run.ID.String(),
			maxAttempts:     s.options.MaxAttempts,
			uniqueJobPeriod: s.options.UniqueJobPeriod,
		}, nil)
		if err != nil {
			return fmt.Errorf("could not add job: %w", err)
		}
		if !added {
			// river unique jobs guarantee one active job per request; rolling
			// back keeps the duplicate request and run out of the database
			return serrors.With(serrors.ErrConflict, "request is already being matched")
		}

		return nil
	}); err != nil {
		if errors.Is(err, serrors.ErrConflict) {
			return nil, nil, err
		}

		return nil, nil, fmt.Errorf("could not submit request: %w", err)
	}

	return stored, run, nil
}

// RunMatch loads the run and its request, freezes a registry snapshot and
// executes the pipeline. Terminal runs are skipped so job retries after a
// finished run are no-ops.
func (s *service) RunMatch(ctx context.Context, runID domain.RunID) error {
	run, err := s.storage.RunByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("could not load run: %w", err)
	}
	if run == nil {
		return serrors.With(serrors.ErrNotFound, "run not found")
	}
	if run.State.Terminal() {
		return nil
	}

	req, err := s.storage.RequestByID(ctx, run.RequestID)
	if err != nil {
		return fmt.Errorf("could not load request: %w", err)
	}
	if req == nil {
		return serrors.With(serrors.ErrNotFound, "request not found")
	}

	hooks := pipeline.Hooks{
		OnTransition: func(ctx context.Context, updated domain.PipelineRun) error {
			return s.persistRun(ctx, updated)
		},
		CancelRequested: func(ctx context.Context) (bool, error) {
			flag, err := s.storage.CancelRequested(ctx, runID)
			if err != nil {
				return false, fmt.Errorf("could not read cancel flag: %w", err)
			}

			return flag, nil
		},
	}

	if _, err := s.pipeline.Execute(ctx, *run, *req, s.registry.Snapshot(), hooks); err != nil {
		return fmt.Errorf("could not execute pipeline: %w", err)
	}

	return nil
}

func (s *service) persistRun(ctx context.Context, run domain.PipelineRun) error {
	updates := storage.RunUpdates{
		State:          run.State,
		SearchRadiusKm: &run.SearchRadiusKm,
	}
	if run.Candidates != nil {
		updates.Candidates = run.Candidates
	}
	if run.FailureReason != "" {
		updates.FailureReason = &run.FailureReason
	}
	if !run.FinishedAt.IsZero() {
		updates.FinishedAt = &run.FinishedAt
	}

	updated, err := s.storage.UpdateRunByID(ctx, run.ID, updates)
	if err != nil {
		return fmt.Errorf("could not persist run transition: %w", err)
	}
	if updated == nil {
		return serrors.With(serrors.ErrNotFound, "run disappeared during execution")
	}

	return nil
}

// CancelRequest flags the latest run of the request for cancellation. The
// run observes the flag at its next stage boundary.
func (s *service) CancelRequest(
	ctx context.Context,
	requesterID domain.RequesterID,
	requestID domain.RequestID,
) error {
	req, err := s.storage.RequestByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("could not load request: %w", err)
	}
	if req == nil || req.RequesterID != requesterID {
		return serrors.With(serrors.ErrNotFound, "request not found")
	}

	run, err := s.storage.LatestRunByRequestID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("could not load latest run: %w", err)
	}
	if run == nil {
		return serrors.With(serrors.ErrNotFound, "request has no run")
	}
	if run.State.Terminal() {
		return serrors.With(serrors.ErrConflict, "run already finished")
	}

	flagged, err := s.storage.RequestCancel(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("could not request cancel: %w", err)
	}
	if !flagged {
		// the run reached a terminal state between the read and the update
		return serrors.With(serrors.ErrConflict, "run already finished")
	}

	return nil
}

// RequestStatus returns a request and its latest run, scoped to the
// requester who submitted it.
func (s *service) RequestStatus(
	ctx context.Context,
	requesterID domain.RequesterID,
	requestID domain.RequestID,
) (*domain.BloodRequest, *domain.PipelineRun, error) {
	req, err := s.storage.RequestByID(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load request: %w", err)
	}
	if req == nil || req.RequesterID != requesterID {
		return nil, nil, serrors.With(serrors.ErrNotFound, "request not found")
	}

	run, err := s.storage.LatestRunByRequestID(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load latest run: %w", err)
	}

	return req, run, nil
}

// RequesterRequests returns a page of requests for the requester. It
// supports cursor-based pagination using an RFC3339 timestamp string and
// returns the next cursor when more results are available.
func (s *service) RequesterRequests(ctx context.Context,
	requesterID domain.RequesterID,
	cursor string,
	limit uint) ([]domain.BloodRequest, string, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	page, err := s.storage.RequesterRequests(ctx, requesterID, cursorTime, limit)
	if err != nil {
		return nil, "", fmt.Errorf("could not get requester requests: %w", err)
	}

	return page.Requests, formatCursor(page.NextCursor), nil
}

// RegisterDonor validates and stores a new donor, then publishes them to the
// live registry.
func (s *service) RegisterDonor(ctx context.Context, donor domain.Donor) (*domain.Donor, error) {
	if err := validateDonor(donor); err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid donor")
	}

	stored, err := s.storage.StoreDonors(ctx, donor)
	if err != nil {
		return nil, fmt.Errorf("could not store donor: %w", err)
	}

	s.registry.Upsert(stored[0])

	return &stored[0], nil
}

// UpdateDonor applies partial updates and refreshes the live registry with
// the updated record.
func (s *service) UpdateDonor(
	ctx context.Context,
	id domain.DonorID,
	updates storage.DonorUpdates,
) (*domain.Donor, error) {
	if updates.Location != nil && !updates.Location.Valid() {
		return nil, serrors.With(serrors.ErrInvalidRequest, "coordinates out of range")
	}
	if updates.Rating != nil && (*updates.Rating < 0 || *updates.Rating > 5) {
		return nil, serrors.With(serrors.ErrInvalidRequest, "rating must be in [0,5]")
	}

	updated, err := s.storage.UpdateDonorByID(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("could not update donor: %w", err)
	}
	if updated == nil {
		return nil, serrors.With(serrors.ErrNotFound, "donor not found")
	}

	s.registry.Upsert(*updated)

	return updated, nil
}

// RemoveDonor soft-deletes a donor and drops them from the live registry.
// In-flight runs keep their snapshot and may still notify the donor.
func (s *service) RemoveDonor(ctx context.Context, id domain.DonorID) error {
	deleted, err := s.storage.DeleteDonor(ctx, id)
	if err != nil {
		return fmt.Errorf("could not delete donor: %w", err)
	}
	if deleted == nil {
		return serrors.With(serrors.ErrNotFound, "donor not found")
	}

	s.registry.Remove(id)

	return nil
}

// Donor fetches a donor by ID. It returns a not-found error when no matching
// donor exists.
func (s *service) Donor(ctx context.Context, id domain.DonorID) (*domain.Donor, error) {
	donor, err := s.storage.DonorByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get donor: %w", err)
	}
	if donor == nil {
		return nil, serrors.With(serrors.ErrNotFound, "donor not found")
	}

	return donor, nil
}

// Donors returns a page of donors using an RFC3339 cursor.
func (s *service) Donors(ctx context.Context, cursor string, limit uint) ([]domain.Donor, string, error) {
	cursorTime, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	page, err := s.storage.Donors(ctx, cursorTime, limit)
	if err != nil {
		return nil, "", fmt.Errorf("could not get donors: %w", err)
	}

	return page.Donors, formatCursor(page.NextCursor), nil
}

// Clusters aggregates the live donor registry into map grid cells for the
// given viewport and zoom level, optionally restricted to one blood type.
func (s *service) Clusters(
	ctx context.Context,
	viewport geo.Bounds,
	zoom int,
	bloodType domain.BloodType,
) ([]domain.ClusterCell, error) {
	if !viewport.Valid() {
		return nil, serrors.With(serrors.ErrInvalidRequest, "invalid viewport bounds")
	}
	if bloodType != "" && !bloodType.Valid() {
		return nil, serrors.With(serrors.ErrInvalidRequest, "unknown blood type %q", string(bloodType))
	}

	donors := s.registry.Snapshot().All()
	if bloodType != "" {
		filtered := donors[:0:0]
		for _, d := range donors {
			if d.BloodType == bloodType {
				filtered = append(filtered, d)
			}
		}
		donors = filtered
	}

	start := time.Now()
	cells := cluster.Cluster(donors, viewport, zoom)
	if s.metrics != nil {
		s.metrics.ClusterDuration.Observe(time.Since(start).Seconds())
	}

	return cells, nil
}

// Hydrate loads all active donors from storage into the registry.
func (s *service) Hydrate(ctx context.Context) error {
	donors, err := s.storage.ActiveDonors(ctx)
	if err != nil {
		return fmt.Errorf("could not load active donors: %w", err)
	}

	s.registry.Load(donors)

	return nil
}

func validateDonor(d domain.Donor) error {
	if !d.BloodType.Valid() {
		return fmt.Errorf("unknown blood type %q", string(d.BloodType))
	}
	if !d.Location.Valid() {
		return fmt.Errorf("coordinates out of range (%f, %f)", d.Location.Lat, d.Location.Lng)
	}
	if d.Rating < 0 || d.Rating > 5 {
		return fmt.Errorf("rating must be in [0,5], got %f", d.Rating)
	}
	if d.DonationCount < 0 {
		return fmt.Errorf("donation count must not be negative")
	}

	return nil
}

func parseCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, cursor)
	if err != nil {
		return time.Time{}, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid cursor")
	}

	return t, nil
}

func formatCursor(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339)
}
