// Package nominatim provides a geocode.Geocoder backed by a Nominatim
// compatible reverse-geocoding endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bloodlink/pkg/geo"
	"bloodlink/pkg/geocode"
	"bloodlink/pkg/serrors"
)

// Client talks to a Nominatim compatible endpoint. It is safe for concurrent
// use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string // Nominatim requires an identifying User-Agent
}

// Resolve turns a free-text query into coordinates using the first search
// result.
func (c *Client) Resolve(ctx context.Context, query string) (geo.Point, error) {
	if strings.TrimSpace(query) == "" {
		return geo.Point{}, serrors.With(serrors.ErrInvalidRequest, "empty location query")
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("q", query)

	b, err := c.get(ctx, "/search?"+q.Encode())
	if err != nil {
		return geo.Point{}, err
	}

	var rs []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(b, &rs); err != nil {
		return geo.Point{}, fmt.Errorf("could not decode response: %w", err)
	}
	if len(rs) == 0 {
		return geo.Point{}, serrors.With(serrors.ErrNotFound, "no results for %q", query)
	}

	lat, err := strconv.ParseFloat(rs[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("could not parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(rs[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("could not parse longitude: %w", err)
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("provider returned out of range coordinates (%f, %f)", lat, lng)
	}

	return p, nil
}

// ReverseGeocode resolves the point to its city, region and country.
func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (geocode.Address, error) {
	if !p.Valid() {
		return geocode.Address{}, serrors.With(serrors.ErrInvalidRequest, "invalid coordinates")
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', -1, 64))

	b, err := c.get(ctx, "/reverse?"+q.Encode())
	if err != nil {
		return geocode.Address{}, err
	}

	var rs struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.Unmarshal(b, &rs); err != nil {
		return geocode.Address{}, fmt.Errorf("could not decode response: %w", err)
	}

	city := rs.Address.City
	if city == "" {
		city = rs.Address.Town
	}
	if city == "" {
		city = rs.Address.Village
	}

	return geocode.Address{
		City:    city,
		Region:  rs.Address.State,
		Country: rs.Address.Country,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode request failed: %s", strings.TrimSpace(string(b)))
	}

	return b, nil
}

// Ensure Client conforms to the geocode.Geocoder interface at compile time.
var _ geocode.Geocoder = (*Client)(nil)

// New constructs a Client against the given Nominatim endpoint.
func New(httpClient *http.Client, baseURL, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}
