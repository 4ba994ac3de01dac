// Package v1handler implements the v1 HTTP API: blood request submission and
// tracking, donor management and viewport clustering.
package v1handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bloodlink/internal/matching"
	"bloodlink/pkg/geocode"
	"bloodlink/pkg/logger"
	"bloodlink/pkg/serrors"
)

// DefaultLimit is the page size used when the client does not specify one.
const DefaultLimit = 20

// Deps holds the collaborators the v1 handlers need.
type Deps struct {
	// Matching is the application service behind every endpoint.
	Matching matching.Service
	// Geocoder resolves free-text hospital locations on request submission
	// and annotates request detail responses. Optional; nil disables both.
	Geocoder geocode.Geocoder
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Routes builds the v1 route tree. Request endpoints carry requester identity
// and sit behind bearer auth; donor and cluster endpoints serve the public
// map client.
func (h *Handler) Routes(sec *SecHandler) http.Handler {
	r := chi.NewRouter()

	r.Route("/requests", func(r chi.Router) {
		r.Use(sec.Middleware)
		r.Post("/", h.createRequest)
		r.Get("/", h.listRequests)
		r.Get("/{requestID}", h.getRequest)
		r.Delete("/{requestID}", h.cancelRequest)
	})

	r.Route("/donors", func(r chi.Router) {
		r.Post("/", h.createDonor)
		r.Get("/", h.listDonors)
		r.Get("/{donorID}", h.getDonor)
		r.Patch("/{donorID}", h.updateDonor)
		r.Patch("/{donorID}/availability", h.updateDonorAvailability)
		r.Delete("/{donorID}", h.deleteDonor)
	})

	r.Get("/clusters", h.getClusters)

	return r
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(ctx, "could not encode response", zap.Error(err))
	}
}

// writeError maps semantic error kinds onto HTTP status codes. Anything
// without a recognized kind is a 500 and its detail stays out of the
// response.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var serr *serrors.Error
	if !errors.As(err, &serr) || serr.Kind() == nil {
		logger.Error(ctx, "internal error", zap.Error(err))
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			Code:    serrors.ErrInternal.Error(),
			Message: "internal error",
		})

		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(serr, serrors.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(serr, serrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(serr, serrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(serr, serrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(serr, serrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(serr, serrors.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(serr, serrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	msg := serr.Message()
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "internal error", zap.Error(err))
		msg = "internal error"
	}

	writeJSON(ctx, w, status, errorResponse{
		Code:    serr.Kind().Error(),
		Message: msg,
	})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return serrors.Wrap(serrors.ErrInvalidRequest, err, "invalid request body")
	}

	return nil
}

func queryLimit(r *http.Request) uint {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil && n > 0 {
			return uint(n)
		}
	}

	return DefaultLimit
}
