package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"service-dispatch/internal/domain"
)

// Client fetches current weather from the OpenWeatherMap API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
}

type currentResponse struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current returns the current conditions for the city.
func (c *Client) Current(ctx context.Context, city string) (domain.WeatherSample, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return domain.WeatherSample{}, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.WeatherSample{}, fmt.Errorf("weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return domain.WeatherSample{}, fmt.Errorf("weather: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.WeatherSample{}, fmt.Errorf("weather: decode: %w", err)
	}
	if len(body.Weather) == 0 {
		return domain.WeatherSample{}, fmt.Errorf("weather: no conditions for %q", city)
	}
	return domain.WeatherSample{
		City:        city,
		Condition:   body.Weather[0].Main,
		Temperature: body.Main.Temp,
		WindSpeed:   body.Wind.Speed,
		Humidity:    body.Main.Humidity,
		ObservedAt:  c.now().UTC(),
	}, nil
}
