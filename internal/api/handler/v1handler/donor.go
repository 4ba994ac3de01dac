package v1handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/serrors"
	"bloodlink/pkg/storage"
)

type createDonorPayload struct {
	BloodType      domain.BloodType `json:"bloodType"`
	Location       geo.Point        `json:"location"`
	Available      bool             `json:"available"`
	Verified       bool             `json:"verified"`
	Rating         float64          `json:"rating"`
	DonationCount  int              `json:"donationCount"`
	LastDonationAt *time.Time       `json:"lastDonationAt,omitempty"`
}

// updateDonorPayload is the PATCH /donors/{id} body; absent fields stay
// untouched.
type updateDonorPayload struct {
	Available      *bool      `json:"available,omitempty"`
	Verified       *bool      `json:"verified,omitempty"`
	Location       *geo.Point `json:"location,omitempty"`
	Rating         *float64   `json:"rating,omitempty"`
	DonationCount  *int       `json:"donationCount,omitempty"`
	LastDonationAt *time.Time `json:"lastDonationAt,omitempty"`
}

type donorListResponse struct {
	Items      []domain.Donor `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func donorID(r *http.Request) (domain.DonorID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "donorID"))
	if err != nil {
		return domain.DonorID{}, serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid donor id")
	}

	return domain.DonorID(id), nil
}

func (h *Handler) createDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createDonorPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(ctx, w, err)

		return
	}

	donor := domain.Donor{
		BloodType:     payload.BloodType,
		Location:      payload.Location,
		Available:     payload.Available,
		Verified:      payload.Verified,
		Rating:        payload.Rating,
		DonationCount: payload.DonationCount,
	}
	if payload.LastDonationAt != nil {
		donor.LastDonationAt = *payload.LastDonationAt
	}

	stored, err := h.deps.Matching.RegisterDonor(ctx, donor)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusCreated, stored)
}

func (h *Handler) getDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := donorID(r)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	donor, err := h.deps.Matching.Donor(ctx, id)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, donor)
}

func (h *Handler) listDonors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, nextCursor, err := h.deps.Matching.Donors(ctx, r.URL.Query().Get("cursor"), queryLimit(r))
	if err != nil {
		writeError(ctx, w, err)

		return
	}
	if items == nil {
		items = []domain.Donor{}
	}

	writeJSON(ctx, w, http.StatusOK, donorListResponse{Items: items, NextCursor: nextCursor})
}

func (h *Handler) updateDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := donorID(r)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	var payload updateDonorPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(ctx, w, err)

		return
	}

	updated, err := h.deps.Matching.UpdateDonor(ctx, id, storage.DonorUpdates{
		Available:      payload.Available,
		Verified:       payload.Verified,
		Location:       payload.Location,
		Rating:         payload.Rating,
		DonationCount:  payload.DonationCount,
		LastDonationAt: payload.LastDonationAt,
	})
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, updated)
}

// updateDonorAvailability is a narrow alias for the common toggle the donor
// app exposes.
func (h *Handler) updateDonorAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := donorID(r)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	var payload struct {
		Available *bool `json:"available"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeError(ctx, w, err)

		return
	}
	if payload.Available == nil {
		writeError(ctx, w, serrors.With(serrors.ErrInvalidRequest, "available is required"))

		return
	}

	updated, err := h.deps.Matching.UpdateDonor(ctx, id, storage.DonorUpdates{Available: payload.Available})
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, updated)
}

func (h *Handler) deleteDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := donorID(r)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	if err := h.deps.Matching.RemoveDonor(ctx, id); err != nil {
		writeError(ctx, w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
