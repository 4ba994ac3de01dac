package controller_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"bloodlink/pkg/controller"
)

func TestWithCORS_SetsHeaders(t *testing.T) {
	h := controller.WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/clusters", nil))

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWithCORS_Preflight(t *testing.T) {
	called := false
	h := controller.WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/requests", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, called, "preflight should not reach the handler")
}
