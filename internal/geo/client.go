// Package geo resolves meeting addresses to coordinates and measures distances
// between coordinate pairs. Geocoding runs only at booking creation; the
// verification proximity check uses stored coordinates.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/companionly/booking-server-go/internal/config"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Client interface {
	// Geocode resolves an address. A nil result without error means the
	// geocoder could not find the address.
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: config.GeocoderTimeout,
		},
	}
}

func (c *HTTPClient) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	u := fmt.Sprintf("%s/geocode?q=%s", c.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var coords Coordinates
	if err := json.NewDecoder(resp.Body).Decode(&coords); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &coords, nil
}
