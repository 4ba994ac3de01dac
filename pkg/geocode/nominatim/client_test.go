package nominatim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"bloodlink/pkg/geo"
	"bloodlink/pkg/geocode/nominatim"
	"bloodlink/pkg/serrors"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Apollo Hospital, Chennai", r.URL.Query().Get("q"))
		require.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		require.Equal(t, "bloodlink-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"13.0358","lon":"80.2507","display_name":"Apollo Hospital"}]`))
	}))
	defer srv.Close()

	c := nominatim.New(srv.Client(), srv.URL, "bloodlink-test")

	p, err := c.Resolve(context.Background(), "Apollo Hospital, Chennai")
	require.NoError(t, err)
	require.InDelta(t, 13.0358, p.Lat, 1e-9)
	require.InDelta(t, 80.2507, p.Lng, 1e-9)
}

func TestResolve_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := nominatim.New(srv.Client(), srv.URL, "bloodlink-test")

	_, err := c.Resolve(context.Background(), "nowhere at all")
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestResolve_EmptyQuery(t *testing.T) {
	c := nominatim.New(http.DefaultClient, "http://unused", "bloodlink-test")

	_, err := c.Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, serrors.ErrInvalidRequest)
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse", r.URL.Path)
		require.Equal(t, "12.9716", r.URL.Query().Get("lat"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":{"town":"Bengaluru","state":"Karnataka","country":"India"}}`))
	}))
	defer srv.Close()

	c := nominatim.New(srv.Client(), srv.URL, "bloodlink-test")

	addr, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 12.9716, Lng: 77.5946})
	require.NoError(t, err)
	require.Equal(t, "Bengaluru", addr.City, "town is used when city is absent")
	require.Equal(t, "Karnataka", addr.Region)
	require.Equal(t, "India", addr.Country)
}

func TestReverseGeocode_InvalidPoint(t *testing.T) {
	c := nominatim.New(http.DefaultClient, "http://unused", "bloodlink-test")

	_, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 123, Lng: 0})
	require.ErrorIs(t, err, serrors.ErrInvalidRequest)
}

func TestReverseGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bandwidth limit exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := nominatim.New(srv.Client(), srv.URL, "bloodlink-test")

	_, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lng: 1})
	require.Error(t, err)
}
