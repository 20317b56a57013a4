package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/interview-engine/internal/models"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 400, "data": data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret1" {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
			return
		}
		writeData(w, http.StatusOK, models.AuthResponse{UserID: "u1", Email: req.Email, Token: "tok-1"})
	})

	mux.HandleFunc("GET /api/interview/domains", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"domains": []*models.Domain{{ID: "d1", Name: "React"}},
			"total":   1,
		})
	})

	mux.HandleFunc("POST /api/interview/start", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "d1", req["domainId"])
		writeData(w, http.StatusCreated, models.StartPracticeResponse{
			SessionID:      "s1",
			Question:       &models.QuestionView{Order: 1, Text: "What is JSX?"},
			TotalQuestions: 2,
		})
	})

	mux.HandleFunc("POST /api/interview/submit-response", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "s1", r.FormValue("sessionId"))
		assert.Equal(t, "1", r.FormValue("questionOrder"))

		file, header, err := r.FormFile("audioResponse")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice", string(data))
		assert.Equal(t, "answer.webm", header.Filename)
		assert.Equal(t, "audio/webm", header.Header.Get("Content-Type"))

		next := 2
		writeData(w, http.StatusOK, models.SubmitResult{Message: "Response submitted", NextOrder: &next})
	})

	mux.HandleFunc("GET /api/interview/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		score := 85.0
		writeData(w, http.StatusOK, models.PracticeResults{SessionID: r.PathValue("id"), TotalScore: &score})
	})

	mux.HandleFunc("POST /api/candidate-interview/submit-response", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bob@example.com", r.Header.Get("X-Candidate-Email"))
		assert.Equal(t, "bob@example.com", r.FormValue("candidateEmail"))
		writeData(w, http.StatusOK, models.SubmitResult{Message: "Interview completed", IsCompleted: true})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPracticeFlow(t *testing.T) {
	srv := newFakeAPI(t)
	ctx := context.Background()
	c := NewClient(srv.URL + "/")

	_, err := c.ListDomains(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	auth, err := c.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", auth.Token)

	domains, err := c.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "React", domains[0].Name)

	start, err := c.StartPractice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "s1", start.SessionID)
	assert.Equal(t, "What is JSX?", start.Question.Text)

	res, err := c.SubmitPractice(ctx, "s1", 1, Audio{Reader: strings.NewReader("voice")})
	require.NoError(t, err)
	require.NotNil(t, res.NextOrder)
	assert.Equal(t, 2, *res.NextOrder)

	results, err := c.PracticeResults(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", results.SessionID)
	assert.InDelta(t, 85.0, *results.TotalScore, 0.001)
}

func TestClientLoginFailure(t *testing.T) {
	srv := newFakeAPI(t)
	c := NewClient(srv.URL)

	_, err := c.Login(context.Background(), "ann@example.com", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientCandidateSubmit(t *testing.T) {
	srv := newFakeAPI(t)
	c := NewClient(srv.URL)

	res, err := c.SubmitCandidate(context.Background(), "cs1", "bob@example.com", 3,
		Audio{Reader: strings.NewReader("voice"), Filename: "a.ogg", ContentType: "audio/ogg"})
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
}

func TestClientHealth(t *testing.T) {
	srv := newFakeAPI(t)
	require.NoError(t, NewClient(srv.URL).Health(context.Background()))

	err := NewClient(srv.URL + "/missing").Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "plain-text 404 still maps to APIError")
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
