// Package matching is the application service tying the donor registry,
// persistence and the matching pipeline together. HTTP handlers and the
// background worker both go through the Service interface.
package matching

import (
	"context"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/storage"
)

type Service interface {
	// SubmitRequest validates and stores a blood request, creates its
	// pipeline run and enqueues the background matching job. One active job
	// per request is enforced.
	SubmitRequest(ctx context.Context, req domain.BloodRequest) (*domain.BloodRequest, *domain.PipelineRun, error)
	// RunMatch executes the pipeline for the given run. It is the worker
	// entrypoint and is idempotent for terminal runs.
	RunMatch(ctx context.Context, runID domain.RunID) error
	// CancelRequest flags the latest run of a request for cooperative
	// cancellation.
	CancelRequest(ctx context.Context, requesterID domain.RequesterID, requestID domain.RequestID) error
	// RequestStatus returns a request together with its latest run.
	RequestStatus(ctx context.Context,
		requesterID domain.RequesterID,
		requestID domain.RequestID) (*domain.BloodRequest, *domain.PipelineRun, error)
	// RequesterRequests returns a page of requests for a requester using an
	// RFC3339 cursor.
	RequesterRequests(ctx context.Context,
		requesterID domain.RequesterID,
		cursor string,
		limit uint) ([]domain.BloodRequest, string, error)

	// RegisterDonor stores a new donor and adds them to the live registry.
	RegisterDonor(ctx context.Context, donor domain.Donor) (*domain.Donor, error)
	// UpdateDonor applies partial updates and refreshes the live registry.
	UpdateDonor(ctx context.Context, id domain.DonorID, updates storage.DonorUpdates) (*domain.Donor, error)
	// RemoveDonor soft-deletes a donor and drops them from the live registry.
	RemoveDonor(ctx context.Context, id domain.DonorID) error
	// Donor fetches a donor by ID.
	Donor(ctx context.Context, id domain.DonorID) (*domain.Donor, error)
	// Donors returns a page of donors using an RFC3339 cursor.
	Donors(ctx context.Context, cursor string, limit uint) ([]domain.Donor, string, error)

	// Clusters aggregates the current donor registry into map grid cells. A
	// non-empty blood type restricts the aggregation to donors of that type.
	Clusters(ctx context.Context, viewport geo.Bounds, zoom int, bloodType domain.BloodType) ([]domain.ClusterCell, error)

	// Hydrate loads all active donors from storage into the registry. Called
	// once at startup.
	Hydrate(ctx context.Context) error
}
