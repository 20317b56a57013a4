package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/terra-clan/interview-engine/internal/models"
)

const (
	defaultVoice       = "af_heart"
	defaultMaxLogLen   = 200
	maxErrorBodyLength = 512
)

// ClientConfig configures the HTTP AI service client
type ClientConfig struct {
	BaseURL        string
	Voice          string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	MaxLogPreview  int
}

// Client talks to the external AI service over HTTP. It implements Speaker and Evaluator.
type Client struct {
	baseURL    string
	voice      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	maxLogLen  int
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new AI service client
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		voice:      cfg.Voice,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     slog.Default(),
		maxLogLen:  cfg.MaxLogPreview,
	}
	if c.voice == "" {
		c.voice = defaultVoice
	}
	if c.maxLogLen <= 0 {
		c.maxLogLen = defaultMaxLogLen
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Enabled reports whether a service URL is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Ping checks that the service answers at all. Any status below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("ai service returned status %d", resp.StatusCode)
	}
	return nil
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// Synthesize generates speech for text. The service answers with the bare audio URL as a JSON string.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text must not be empty")
	}

	var audioURL string
	if err := c.post(ctx, "/tts", ttsRequest{Text: text, VoiceID: c.voice}, &audioURL); err != nil {
		return "", fmt.Errorf("tts: %w", err)
	}

	return strings.TrimSpace(audioURL), nil
}

type evaluateResponse struct {
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	Transcription string  `json:"transcription"`
}

// Evaluate transcribes the answer audio and scores it against the ideal answer
func (c *Client) Evaluate(ctx context.Context, req EvaluationRequest) (*models.Evaluation, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("evaluate: %w", ErrUnavailable)
	}

	var resp evaluateResponse
	if err := c.post(ctx, "/evaluate", req, &resp); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	c.logger.Debug("ai evaluation received",
		"audio_url", req.AudioURL,
		"score", resp.Score,
		"feedback_preview", TruncateForLog(resp.Feedback, c.maxLogLen),
	)

	return &models.Evaluation{
		Score:         ClampScore(int(resp.Score + 0.5)),
		Feedback:      strings.TrimSpace(resp.Feedback),
		Transcription: strings.TrimSpace(resp.Transcription),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	c.logger.Debug("ai request",
		"path", path,
		"payload_preview", TruncateForLog(string(payload), c.maxLogLen),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("ai response",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_preview", TruncateForLog(string(respBody), c.maxLogLen),
	)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, TruncateForLog(string(respBody), maxErrorBodyLength))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
