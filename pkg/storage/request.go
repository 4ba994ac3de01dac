package storage

import (
	"context"
	"time"

	"bloodlink/pkg/domain"
)

// RequestPage groups a page of blood requests together with an optional
// NextCursor used for pagination.
type RequestPage struct {
	Requests   []domain.BloodRequest
	NextCursor *time.Time
}

// RequestStorage defines persistence operations on blood requests. Requests
// are immutable once stored; lifecycle state lives on their pipeline runs.
type RequestStorage interface {
	// StoreRequest inserts a request and returns the stored row.
	StoreRequest(ctx context.Context, req domain.BloodRequest) (*domain.BloodRequest, error)
	// RequestByID fetches a request by ID. Returns nil when not found.
	RequestByID(ctx context.Context, id domain.RequestID) (*domain.BloodRequest, error)
	// RequesterRequests returns a page of requests submitted by the given
	// requester, created before the optional cursor time.
	RequesterRequests(ctx context.Context,
		requesterID domain.RequesterID,
		cursor time.Time,
		limit uint) (RequestPage, error)
}
