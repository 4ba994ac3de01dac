package v1handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/serrors"
)

// createRequestPayload is the POST /requests body. Either coordinates or a
// free-text location query must be supplied; the query is resolved through
// the geocoder when coordinates are absent.
type createRequestPayload struct {
	BloodType     domain.BloodType `json:"bloodType"`
	Units         int              `json:"units"`
	Urgency       domain.Urgency   `json:"urgency"`
	Location      *geo.Point       `json:"location,omitempty"`
	LocationQuery string           `json:"locationQuery,omitempty"`
}

// requestResponse is a blood request together with its (latest) pipeline run.
type requestResponse struct {
	domain.BloodRequest

	Run          *domain.PipelineRun `json:"run,omitempty"`
	LocationName string              `json:"locationName,omitempty"`
}

type requestListResponse struct {
	Items      []domain.BloodRequest `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createRequestPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(ctx, w, err)

		return
	}

	req := domain.BloodRequest{
		RequesterID: GetUserIDFromContext(ctx),
		BloodType:   payload.BloodType,
		Units:       payload.Units,
		Urgency:     payload.Urgency,
	}
	switch {
	case payload.Location != nil:
		req.Location = *payload.Location
	case payload.LocationQuery != "" && h.deps.Geocoder != nil:
		p, err := h.deps.Geocoder.Resolve(ctx, payload.LocationQuery)
		if err != nil {
			writeError(ctx, w, serrors.Wrap(serrors.ErrInvalidRequest, err, "could not resolve location"))

			return
		}
		req.Location = p
	default:
		writeError(ctx, w, serrors.With(serrors.ErrInvalidRequest, "location or locationQuery is required"))

		return
	}

	stored, run, err := h.deps.Matching.SubmitRequest(ctx, req)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusCreated, requestResponse{BloodRequest: *stored, Run: run})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(ctx, w, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid request id"))

		return
	}

	req, run, err := h.deps.Matching.RequestStatus(ctx, GetUserIDFromContext(ctx), domain.RequestID(id))
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	res := requestResponse{BloodRequest: *req, Run: run}
	// best effort annotation; a geocoder failure never fails the request
	if h.deps.Geocoder != nil {
		if addr, err := h.deps.Geocoder.ReverseGeocode(ctx, req.Location); err == nil {
			res.LocationName = addr.City
		}
	}

	writeJSON(ctx, w, http.StatusOK, res)
}

func (h *Handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(ctx, w, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid request id"))

		return
	}

	if err := h.deps.Matching.CancelRequest(ctx, GetUserIDFromContext(ctx), domain.RequestID(id)); err != nil {
		writeError(ctx, w, err)

		return
	}

	// cancellation is cooperative; the run observes the flag at its next
	// stage boundary
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, nextCursor, err := h.deps.Matching.RequesterRequests(ctx,
		GetUserIDFromContext(ctx),
		r.URL.Query().Get("cursor"),
		queryLimit(r))
	if err != nil {
		writeError(ctx, w, err)

		return
	}
	if items == nil {
		items = []domain.BloodRequest{}
	}

	writeJSON(ctx, w, http.StatusOK, requestListResponse{Items: items, NextCursor: nextCursor})
}
