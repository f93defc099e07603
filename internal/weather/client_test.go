package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubPoint struct {
	dt       time.Time
	temp     float64
	humidity int
	desc     string
	wind     float64
	pod      string
}

func stubForecastBody(city string, points []stubPoint) map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		list = append(list, map[string]interface{}{
			"dt": p.dt.Unix(),
			"main": map[string]interface{}{
				"temp":     p.temp,
				"humidity": p.humidity,
			},
			"weather": []map[string]interface{}{
				{"main": "Clouds", "description": p.desc},
			},
			"wind": map[string]interface{}{"speed": p.wind},
			"sys":  map[string]interface{}{"pod": p.pod},
		})
	}
	return map[string]interface{}{
		"city": map[string]interface{}{"name": city},
		"list": list,
	}
}

func TestClient_Forecast_ByName(t *testing.T) {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) // a Monday
	points := []stubPoint{
		{base, 15.6, 65, "scattered clouds", 3.2, "d"},
		{base.Add(3 * time.Hour), 17.1, 60, "few clouds", 2.0, "d"},
		{base.Add(24 * time.Hour), 12.4, 70, "light rain", 5.0, "d"},
		{base.Add(27 * time.Hour), 11.0, 72, "rain", 5.5, "n"},
		{base.Add(48 * time.Hour), 9.5, 80, "snow", 1.0, "n"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Tokyo" {
			t.Errorf("q = %q, want Tokyo", q.Get("q"))
		}
		if q.Get("appid") == "" {
			t.Error("expected appid in query")
		}
		if q.Get("units") != "metric" {
			t.Errorf("units = %q, want metric", q.Get("units"))
		}
		if q.Get("lang") != "en" {
			t.Errorf("lang = %q, want en", q.Get("lang"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stubForecastBody("Tokyo", points))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, 2*time.Second)
	got, err := client.Forecast(context.Background(), ByName("Tokyo"), "en")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if got.Location != "Tokyo" {
		t.Errorf("Location = %q, want Tokyo", got.Location)
	}
	if got.Temperature != 16 {
		t.Errorf("Temperature = %d, want 16 (15.6 rounded)", got.Temperature)
	}
	if got.Condition != "scattered clouds" {
		t.Errorf("Condition = %q, want scattered clouds", got.Condition)
	}
	if got.Humidity != 65 {
		t.Errorf("Humidity = %d, want 65", got.Humidity)
	}
	if got.WindKmh != 12 {
		t.Errorf("WindKmh = %d, want 12 (3.2 m/s * 3.6 rounded)", got.WindKmh)
	}
	if !got.IsDay {
		t.Error("IsDay = false, want true (pod d on first entry)")
	}

	// Three distinct calendar days; first occurrence per day wins.
	if len(got.Forecast) != 3 {
		t.Fatalf("len(Forecast) = %d, want 3", len(got.Forecast))
	}
	wantDays := []struct {
		day  string
		temp int
		cond string
	}{
		{"Monday", 16, "scattered clouds"},
		{"Tuesday", 12, "light rain"},
		{"Wednesday", 10, "snow"},
	}
	for i, want := range wantDays {
		if got.Forecast[i].Day != want.day {
			t.Errorf("Forecast[%d].Day = %q, want %q", i, got.Forecast[i].Day, want.day)
		}
		if got.Forecast[i].Temperature != want.temp {
			t.Errorf("Forecast[%d].Temperature = %d, want %d", i, got.Forecast[i].Temperature, want.temp)
		}
		if got.Forecast[i].Condition != want.cond {
			t.Errorf("Forecast[%d].Condition = %q, want %q", i, got.Forecast[i].Condition, want.cond)
		}
	}
}

func TestClient_Forecast_FiveDayCap(t *testing.T) {
	base := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	var points []stubPoint
	// Seven days, two points each; summary must stop at five distinct days.
	for day := 0; day < 7; day++ {
		for _, h := range []int{0, 6} {
			points = append(points, stubPoint{
				dt:   base.Add(time.Duration(day*24+h) * time.Hour),
				temp: float64(10 + day), humidity: 50, desc: "clear sky", wind: 1.0, pod: "d",
			})
		}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(stubForecastBody("Oslo", points))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, 2*time.Second)
	got, err := client.Forecast(context.Background(), ByName("Oslo"), "")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got.Forecast) != 5 {
		t.Fatalf("len(Forecast) = %d, want 5", len(got.Forecast))
	}
	seen := make(map[string]bool)
	for _, d := range got.Forecast {
		if seen[d.Day] {
			t.Errorf("duplicate day label %q in forecast", d.Day)
		}
		seen[d.Day] = true
	}
}

func TestClient_Forecast_ByCoords(t *testing.T) {
	base := time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("lat") != "35.68" || q.Get("lon") != "139.69" {
			t.Errorf("lat/lon = %q/%q, want 35.68/139.69", q.Get("lat"), q.Get("lon"))
		}
		if q.Has("q") {
			t.Error("by-coords query must not carry q")
		}
		_ = json.NewEncoder(w).Encode(stubForecastBody("Tokyo", []stubPoint{
			{base, 8.5, 80, "clear sky", 0.5, "n"},
		}))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, 2*time.Second)
	got, err := client.Forecast(context.Background(), ByCoords(35.68, 139.69), "")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got.IsDay {
		t.Error("IsDay = true, want false (pod n)")
	}
	if got.WindKmh != 2 {
		t.Errorf("WindKmh = %d, want 2 (0.5 m/s * 3.6 rounded)", got.WindKmh)
	}
}

func TestClient_Forecast_ZeroQueryNoUpstreamCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, 2*time.Second)
	_, err := client.Forecast(context.Background(), Query{}, "en")
	if !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("Forecast() error = %v, want ErrInvalidLocation", err)
	}
	if calls != 0 {
		t.Errorf("upstream calls = %d, want 0", calls)
	}
}

func TestClient_Forecast_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "404 not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: ErrLocationNotFound,
		},
		{
			name: "401 invalid key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: ErrInvalidAPIKey,
		},
		{
			name: "429 rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: ErrRateLimited,
		},
		{
			name: "500 server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrUpstreamFailure,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: ErrUpstreamFailure,
		},
		{
			name: "empty forecast list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(stubForecastBody("Nowhere", nil))
			},
			wantErr: ErrUpstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient("test-api-key", server.URL, 2*time.Second)
			_, err := client.Forecast(context.Background(), ByName("Tokyo"), "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Forecast() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindKmh_Exact(t *testing.T) {
	tests := []struct {
		ms   float64
		want int
	}{
		{0, 0},
		{1, 4},    // 3.6
		{3.2, 12}, // 11.52
		{5.5, 20}, // 19.8
		{10, 36},
		{0.5, 2}, // 1.8
	}
	for _, tt := range tests {
		if got := windKmh(tt.ms); got != tt.want {
			t.Errorf("windKmh(%v) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"not found", ErrLocationNotFound, ErrorCategoryLocationNotFound},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimited},
		{"invalid key", ErrInvalidAPIKey, ErrorCategoryInvalidAPIKey},
		{"invalid location", ErrInvalidLocation, ErrorCategoryValidation},
		{"upstream", ErrUpstreamFailure, ErrorCategoryUpstream},
		{"parse", errors.New("parse response: bad"), ErrorCategoryParsing},
		{"unknown", errors.New("weird"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
