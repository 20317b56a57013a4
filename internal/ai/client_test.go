package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSynthesize(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode("http://ai.local/temp/audio/tts/q1.wav")
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"})

	url, err := c.Synthesize(context.Background(), "What is JSX?")
	require.NoError(t, err)
	assert.Equal(t, "http://ai.local/temp/audio/tts/q1.wav", url)
	assert.Equal(t, "What is JSX?", got.Text)
	assert.Equal(t, "af_heart", got.VoiceID)
}

func TestClientSynthesizeDisabled(t *testing.T) {
	c := NewClient(ClientConfig{})

	url, err := c.Synthesize(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.False(t, c.Enabled())
}

func TestClientEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/evaluate", r.URL.Path)

		var req EvaluationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "http://host/uploads/audio/a.webm", req.AudioURL)
		assert.Equal(t, "What is JSX?", req.QuestionText)

		_, _ = w.Write([]byte(`{"score": 150, "feedback": " Solid answer ", "transcription": "JSX is syntax"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	ev, err := c.Evaluate(context.Background(), EvaluationRequest{
		AudioURL:     "http://host/uploads/audio/a.webm",
		QuestionText: "What is JSX?",
		IdealAnswer:  "A syntax extension",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, ev.Score)
	assert.Equal(t, "Solid answer", ev.Feedback)
	assert.Equal(t, "JSX is syntax", ev.Transcription)
}

func TestClientEvaluateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Evaluation Process Failed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	_, err := c.Evaluate(context.Background(), EvaluationRequest{AudioURL: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.Synthesize(context.Background(), "slow")
	require.Error(t, err)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 42, ClampScore(42))
	assert.Equal(t, 100, ClampScore(101))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 5))
	assert.Equal(t, "ab...", TruncateForLog("abcdef", 2))
}

func TestClientPing(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, c.Ping(context.Background()), "any non-5xx answer means reachable")

	status.Store(http.StatusBadGateway)
	assert.Error(t, c.Ping(context.Background()))

	assert.ErrorIs(t, NewClient(ClientConfig{}).Ping(context.Background()), ErrUnavailable)
}
