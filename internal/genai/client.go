package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pcannon/weather-assistant/internal/models"
	"github.com/pcannon/weather-assistant/internal/observability"
)

// Generator produces text from a prompt via the generative-language upstream.
type Generator interface {
	// Generate returns the first candidate's text. An empty string with a nil
	// error means the upstream answered successfully with no candidate.
	Generate(ctx context.Context, req models.GenerationRequest) (string, error)
}

var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrRateLimited      = errors.New("rate limited")

	errTransport = errors.New("transport error")
)

// Client calls the generateContent endpoint with bounded retry. Transient
// failures (HTTP 429, transport errors) are retried with exponential backoff
// capped at maxDelay; any other non-success status fails immediately.
type Client struct {
	apiKey      string
	model       string
	http        *resty.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewClient returns a generation client. An empty API key is tolerated here;
// the upstream rejects the call when an endpoint is actually invoked.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, maxAttempts int, baseDelay, maxDelay time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		apiKey:      apiKey,
		model:       model,
		http:        rc,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate performs up to maxAttempts upstream calls, sleeping backoff(n)
// before attempt n (0-indexed, n >= 1). The sleep honors ctx cancellation.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	body := buildBody(req)

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			observability.GenerationRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrGenerationFailed, ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}

		text, err := c.callAPI(ctx, body)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
	}

	return "", fmt.Errorf("%w: exhausted retries: %v", ErrGenerationFailed, lastErr)
}

// backoff returns min(baseDelay * 2^attempt, maxDelay).
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay << uint(attempt)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	return delay
}

func buildBody(req models.GenerationRequest) generateRequest {
	body := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if req.JSONOutput {
		body.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json"}
	}
	return body
}

func (c *Client) callAPI(ctx context.Context, body generateRequest) (string, error) {
	start := time.Now()

	var out generateResponse
	r := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		SetResult(&out).
		ForceContentType("application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		r.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := r.Post("/models/" + c.model + ":generateContent")
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.GenerationAPICallsTotal.WithLabelValues("error").Inc()
		observability.GenerationAPIDuration.WithLabelValues("error").Observe(duration)
		observability.UpstreamErrorsTotal.WithLabelValues("generation", "network").Inc()
		return "", fmt.Errorf("%w: %v", errTransport, err)
	}

	status := statusLabel(resp.StatusCode())
	observability.GenerationAPICallsTotal.WithLabelValues(status).Inc()
	observability.GenerationAPIDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode() == http.StatusTooManyRequests {
		observability.UpstreamErrorsTotal.WithLabelValues("generation", "rate_limited").Inc()
		return "", fmt.Errorf("%w", ErrRateLimited)
	}
	if !resp.IsSuccess() {
		observability.UpstreamErrorsTotal.WithLabelValues("generation", "upstream_error").Inc()
		return "", fmt.Errorf("upstream status: HTTP %d", resp.StatusCode())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// isRetryable reports whether the attempt may be repeated: only rate
// limiting and transport failures qualify.
func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, errTransport)
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
