package v1handler

import (
	"net/http"
	"strconv"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/serrors"
)

type clusterListResponse struct {
	Items []domain.ClusterCell `json:"items"`
}

// getClusters answers the map client's viewport query: GET
// /clusters?minLat&minLng&maxLat&maxLng&zoom[&bloodType].
func (h *Handler) getClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		viewport geo.Bounds
		err      error
	)
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"minLat", &viewport.MinLat},
		{"minLng", &viewport.MinLng},
		{"maxLat", &viewport.MaxLat},
		{"maxLng", &viewport.MaxLng},
	} {
		*f.dst, err = strconv.ParseFloat(q.Get(f.name), 64)
		if err != nil {
			writeError(ctx, w, serrors.With(serrors.ErrInvalidRequest, "invalid %s", f.name))

			return
		}
	}

	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		writeError(ctx, w, serrors.With(serrors.ErrInvalidRequest, "invalid zoom"))

		return
	}

	cells, err := h.deps.Matching.Clusters(ctx, viewport, zoom, domain.BloodType(q.Get("bloodType")))
	if err != nil {
		writeError(ctx, w, err)

		return
	}
	if cells == nil {
		cells = []domain.ClusterCell{}
	}

	writeJSON(ctx, w, http.StatusOK, clusterListResponse{Items: cells})
}
