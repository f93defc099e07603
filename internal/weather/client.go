package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pcannon/weather-assistant/internal/models"
	"github.com/pcannon/weather-assistant/internal/observability"
)

// Provider fetches a forecast snapshot for a location query.
type Provider interface {
	Forecast(ctx context.Context, q Query, lang string) (models.WeatherSnapshot, error)
}

var (
	ErrInvalidLocation  = errors.New("invalid location query")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

type queryKind int

const (
	queryNone queryKind = iota
	queryByName
	queryByCoords
)

// Query identifies a location either by name or by coordinates. The zero
// value identifies nothing and is rejected before any upstream call.
type Query struct {
	kind queryKind
	name string
	lat  float64
	lon  float64
}

// ByName builds a query for a city name.
func ByName(name string) Query {
	return Query{kind: queryByName, name: name}
}

// ByCoords builds a query for a latitude/longitude pair.
func ByCoords(lat, lon float64) Query {
	return Query{kind: queryByCoords, lat: lat, lon: lon}
}

// IsZero reports whether the query identifies no location.
func (q Query) IsZero() bool { return q.kind == queryNone }

// Name returns the city name for by-name queries, empty otherwise.
func (q Query) Name() string { return q.name }

// Client calls the 5-day/3-hour forecast API and normalizes the payload
// into a WeatherSnapshot. One attempt per request; no retry.
type Client struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewClient returns a forecast client. An empty API key is tolerated here;
// the upstream rejects the call when an endpoint is actually invoked.
func NewClient(apiKey, apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []forecastPoint `json:"list"`
}

type forecastPoint struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
	} `json:"wind"`
	Sys struct {
		Pod string `json:"pod"` // "d" day, "n" night
	} `json:"sys"`
}

// Forecast fetches and normalizes the forecast for q. lang is forwarded to
// the upstream so condition text comes back localized; it may be empty.
func (c *Client) Forecast(ctx context.Context, q Query, lang string) (models.WeatherSnapshot, error) {
	if q.IsZero() {
		return models.WeatherSnapshot{}, ErrInvalidLocation
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, q, lang)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherSnapshot{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)
		observability.UpstreamErrorsTotal.WithLabelValues("weather", string(CategorizeError(err))).Inc()
		return models.WeatherSnapshot{}, fmt.Errorf("%w: http request failed: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues("weather", string(CategorizeError(err))).Inc()
		return models.WeatherSnapshot{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: read response body: %v", ErrUpstreamFailure, err)
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues("weather", string(ErrorCategoryParsing)).Inc()
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse response: %v", ErrUpstreamFailure, err)
	}
	if len(apiResp.List) == 0 {
		observability.UpstreamErrorsTotal.WithLabelValues("weather", string(ErrorCategoryParsing)).Inc()
		return models.WeatherSnapshot{}, fmt.Errorf("%w: empty forecast list", ErrUpstreamFailure)
	}

	return c.mapResponse(apiResp, q), nil
}

func (c *Client) buildRequest(ctx context.Context, q Query, lang string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	switch q.kind {
	case queryByName:
		params.Set("q", q.name)
	case queryByCoords:
		params.Set("lat", strconv.FormatFloat(q.lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(q.lon, 'f', -1, 64))
	}
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if lang != "" {
		params.Set("lang", lang)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// mapResponse normalizes the forecast list. The first point stands for
// current conditions; the daily summary keeps the first point per distinct
// UTC calendar day, at most five days.
func (c *Client) mapResponse(apiResp forecastResponse, q Query) models.WeatherSnapshot {
	current := apiResp.List[0]

	displayName := apiResp.City.Name
	if displayName == "" {
		displayName = q.name
	}

	snapshot := models.WeatherSnapshot{
		Location:    displayName,
		Temperature: roundTemp(current.Main.Temp),
		Condition:   pointCondition(current),
		Humidity:    current.Main.Humidity,
		WindKmh:     windKmh(current.Wind.Speed),
		IsDay:       current.Sys.Pod == "d",
	}

	seen := make(map[string]struct{}, 5)
	for _, p := range apiResp.List {
		day := time.Unix(p.Dt, 0).UTC()
		key := day.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		snapshot.Forecast = append(snapshot.Forecast, models.ForecastDay{
			Day:         day.Weekday().String(),
			Temperature: roundTemp(p.Main.Temp),
			Condition:   pointCondition(p),
		})
		if len(snapshot.Forecast) == 5 {
			break
		}
	}

	return snapshot
}

func pointCondition(p forecastPoint) string {
	if len(p.Weather) == 0 {
		return ""
	}
	if p.Weather[0].Description != "" {
		return p.Weather[0].Description
	}
	return p.Weather[0].Main
}

func roundTemp(t float64) int {
	return int(math.Round(t))
}

// windKmh converts meters/second to rounded kilometers/hour.
func windKmh(ms float64) int {
	return int(math.Round(ms * 3.6))
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
