package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pcannon/weather-assistant/internal/genai"
	"github.com/pcannon/weather-assistant/internal/models"
	"github.com/pcannon/weather-assistant/internal/prompt"
	"github.com/pcannon/weather-assistant/internal/validation"
	"github.com/pcannon/weather-assistant/internal/weather"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather        weather.Provider
	generator      genai.Generator
	logger         *zap.Logger
	locationMinLen int
	locationMaxLen int
}

// NewHandler returns a new Handler.
func NewHandler(provider weather.Provider, generator genai.Generator, logger *zap.Logger, locationMinLen, locationMaxLen int) *Handler {
	return &Handler{
		weather:        provider,
		generator:      generator,
		logger:         logger,
		locationMinLen: locationMinLen,
		locationMaxLen: locationMaxLen,
	}
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// weatherRequest carries the location fields accepted by /api/weather, from
// the query string (GET) or the JSON body (POST). Body fields win when both
// are present.
type weatherRequest struct {
	City string   `json:"city"`
	Q    string   `json:"q"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Lang string   `json:"lang"`
}

// GetWeather handles GET|POST /api/weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	req, err := parseWeatherRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var q weather.Query
	switch {
	case req.City != "" || req.Q != "":
		name := req.City
		if name == "" {
			name = req.Q
		}
		name, err := validation.ValidateCityName(name, h.locationMinLen, h.locationMaxLen)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q = weather.ByName(name)
	case req.Lat != nil && req.Lon != nil:
		q = weather.ByCoords(*req.Lat, *req.Lon)
	default:
		writeError(w, http.StatusBadRequest, "city or lat/lon is required")
		return
	}

	snapshot, err := h.weather.Forecast(r.Context(), q, req.Lang)
	if err != nil {
		h.logUpstreamError(r, "weather fetch failed", err)
		switch {
		case errors.Is(err, weather.ErrInvalidLocation):
			writeError(w, http.StatusBadRequest, "invalid location")
		case errors.Is(err, weather.ErrLocationNotFound):
			writeError(w, http.StatusNotFound, "location not found")
		default:
			writeError(w, http.StatusInternalServerError, "unable to fetch weather data")
		}
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func parseWeatherRequest(r *http.Request) (weatherRequest, error) {
	var req weatherRequest

	qs := r.URL.Query()
	req.City = strings.TrimSpace(qs.Get("city"))
	req.Q = strings.TrimSpace(qs.Get("q"))
	req.Lang = strings.TrimSpace(qs.Get("lang"))
	var err error
	if req.Lat, err = parseFloatParam(qs.Get("lat"), "lat"); err != nil {
		return weatherRequest{}, err
	}
	if req.Lon, err = parseFloatParam(qs.Get("lon"), "lon"); err != nil {
		return weatherRequest{}, err
	}

	if r.Method == http.MethodPost && r.Body != nil {
		var body weatherRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return weatherRequest{}, errors.New("invalid JSON body")
		}
		if body.City != "" {
			req.City = strings.TrimSpace(body.City)
		}
		if body.Q != "" {
			req.Q = strings.TrimSpace(body.Q)
		}
		if body.Lang != "" {
			req.Lang = strings.TrimSpace(body.Lang)
		}
		if body.Lat != nil {
			req.Lat = body.Lat
		}
		if body.Lon != nil {
			req.Lon = body.Lon
		}
	}

	return req, nil
}

func parseFloatParam(s, name string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

// PostExtractCity handles POST /api/extract-city.
func (h *Handler) PostExtractCity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	input := strings.TrimSpace(body.Query)
	if input == "" {
		input = strings.TrimSpace(body.Text)
	}
	if input == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	reply, err := h.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt: prompt.CityExtraction(input),
	})
	if err != nil {
		h.logUpstreamError(r, "city extraction failed", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	resp := struct {
		City *string `json:"city"`
	}{}
	if city, ok := prompt.ParseCityReply(reply); ok {
		resp.City = &city
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostChat handles POST /api/chat.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message  string                  `json:"message"`
		Weather  *models.WeatherSnapshot `json:"weather"`
		History  []models.ChatTurn       `json:"history"`
		Language string                  `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	text, err := h.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt:            body.Message,
		SystemInstruction: prompt.ChatSystem(body.Weather, body.History, body.Language),
	})
	if err != nil {
		h.logUpstreamError(r, "chat generation failed", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// PostTranslate handles POST /api/translate. The model's structured reply
// is parsed into an id→text mapping and relayed as-is.
func (h *Handler) PostTranslate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages       []models.TranslateMessage `json:"messages"`
		TargetLangName string                    `json:"targetLangName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	if strings.TrimSpace(body.TargetLangName) == "" {
		writeError(w, http.StatusBadRequest, "targetLangName is required")
		return
	}

	reply, err := h.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt:     prompt.Translation(body.Messages, body.TargetLangName),
		JSONOutput: true,
	})
	if err != nil {
		h.logUpstreamError(r, "translation failed", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	var translations map[string]string
	if err := json.Unmarshal([]byte(reply), &translations); err != nil {
		h.logUpstreamError(r, "translation reply not parseable", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, translations)
}

// logUpstreamError logs the underlying upstream error with the
// request-scoped logger when present, falling back to the handler's own.
// Callers never put this detail in the response body.
func (h *Handler) logUpstreamError(r *http.Request, msg string, err error) {
	logger := h.logger
	if l, ok := r.Context().Value("logger").(*zap.Logger); ok && l != nil {
		logger = l
	}
	if logger != nil {
		logger.Error(msg, zap.Error(err))
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the generic error body. Upstream detail stays in the log.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
