// Package client is a Go SDK for the interview-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Client is a Go SDK for interview-engine API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken authenticates requests with a bearer token obtained from Login
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new interview-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failure reported by the API envelope
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Audio is a recorded answer to upload
type Audio struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Login exchanges credentials for a token. The token is used for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Logout revokes the current token
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// ListDomains returns the practice domains
func (c *Client) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	var result struct {
		Domains []*models.Domain `json:"domains"`
		Total   int              `json:"total"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/interview/domains", nil, &result); err != nil {
		return nil, err
	}
	return result.Domains, nil
}

// StartPractice begins a practice session in a domain
func (c *Client) StartPractice(ctx context.Context, domainID string) (*models.StartPracticeResponse, error) {
	var resp models.StartPracticeResponse
	body := map[string]string{"domainId": domainID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/interview/start", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitPractice uploads the answer to the question at order
func (c *Client) SubmitPractice(ctx context.Context, sessionID string, order int, audio Audio) (*models.SubmitResult, error) {
	fields := map[string]string{
		"sessionId":     sessionID,
		"questionOrder": strconv.Itoa(order),
	}
	var resp models.SubmitResult
	if err := c.doMultipart(ctx, "/api/interview/submit-response", fields, audio, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextPractice returns the first unanswered question of a practice session
func (c *Client) NextPractice(ctx context.Context, sessionID string) (*models.QuestionView, error) {
	var view models.QuestionView
	if err := c.doJSON(ctx, http.MethodPost, "/api/interview/next-question", map[string]string{"sessionId": sessionID}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PracticeResults returns the score breakdown of a practice session
func (c *Client) PracticeResults(ctx context.Context, sessionID string) (*models.PracticeResults, error) {
	var results models.PracticeResults
	if err := c.doJSON(ctx, http.MethodGet, "/api/interview/results/"+url.PathEscape(sessionID), nil, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// CreateInterview creates a company interview and returns the invitation links
func (c *Client) CreateInterview(ctx context.Context, req models.CreateInterviewRequest) (*models.CreateInterviewResponse, error) {
	var resp models.CreateInterviewResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/company-interview/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InterviewResults lists the candidates of a company interview
func (c *Client) InterviewResults(ctx context.Context, interviewID string) ([]*models.CandidateResult, error) {
	var result struct {
		Results []*models.CandidateResult `json:"results"`
		Total   int                       `json:"total"`
	}
	path := "/api/company-interview/results/" + url.PathEscape(interviewID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// StartCandidate opens the invitation token for email. It needs no login.
func (c *Client) StartCandidate(ctx context.Context, token, email string) (*models.CandidateStartResponse, error) {
	var resp models.CandidateStartResponse
	path := "/api/candidate-interview/start/" + url.PathEscape(token)
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"candidateEmail": email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitCandidate uploads a candidate answer
func (c *Client) SubmitCandidate(ctx context.Context, sessionID, email string, order int, audio Audio) (*models.SubmitResult, error) {
	fields := map[string]string{
		"sessionId":      sessionID,
		"candidateEmail": email,
		"questionOrder":  strconv.Itoa(order),
	}
	headers := map[string]string{"X-Candidate-Email": email}
	var resp models.SubmitResult
	if err := c.doMultipart(ctx, "/api/candidate-interview/submit-response", fields, audio, headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextCandidate returns the candidate's first unanswered question
func (c *Client) NextCandidate(ctx context.Context, sessionID, email string) (*models.QuestionView, error) {
	var view models.QuestionView
	body := map[string]string{"sessionId": sessionID, "candidateEmail": email}
	if err := c.doJSON(ctx, http.MethodPost, "/api/candidate-interview/next-question", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, audio Audio, headers map[string]string, result any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write form field: %w", err)
		}
	}

	filename := audio.Filename
	if filename == "" {
		filename = "answer.webm"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="audioResponse"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio.Reader); err != nil {
		return fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req, result)
}

// do sends req and decodes the envelope's data into result
func (c *Client) do(req *http.Request, result any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !env.Success || resp.StatusCode >= 400 {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "http_error", Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if result == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
