package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"service-dispatch/internal/domain"
)

// Route is the cost of a path through all requested points.
type Route struct {
	DistanceKm  float64
	DurationMin float64
}

// StatusError is a non-2xx answer of the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("route provider: status %d: %s", e.Code, e.Body)
}

// Profile returns the OpenRouteService profile for a courier mode.
func Profile(mode domain.CourierMode) string {
	if mode == domain.ModeBike {
		return "cycling-regular"
	}
	return "foot-walking"
}

// ORSGateway is a route gateway backed by the OpenRouteService directions API.
type ORSGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewORSGateway creates an OpenRouteService gateway.
func NewORSGateway(baseURL, apiKey string, timeout time.Duration) *ORSGateway {
	return &ORSGateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"` // metres
			Duration float64 `json:"duration"` // seconds
		} `json:"summary"`
	} `json:"routes"`
}

// Route returns distance and duration through the points in order.
func (g *ORSGateway) Route(ctx context.Context, mode domain.CourierMode, points []domain.Point) (Route, error) {
	if len(points) < 2 {
		return Route{}, fmt.Errorf("route gateway: need at least 2 points, got %d", len(points))
	}
	req := directionsRequest{Coordinates: make([][2]float64, 0, len(points))}
	for _, p := range points {
		req.Coordinates = append(req.Coordinates, [2]float64{p.Lon, p.Lat})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Route{}, fmt.Errorf("route gateway: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", g.baseURL, Profile(mode))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Route{}, fmt.Errorf("route gateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Route{}, fmt.Errorf("route gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Route{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, fmt.Errorf("route gateway: decode: %w", err)
	}
	if len(out.Routes) == 0 {
		return Route{}, fmt.Errorf("route gateway: empty route list")
	}
	s := out.Routes[0].Summary
	return Route{DistanceKm: s.Distance / 1000, DurationMin: s.Duration / 60}, nil
}
