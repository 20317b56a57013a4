// Package ai connects the interview engine to speech synthesis and answer scoring backends.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/terra-clan/interview-engine/internal/models"
)

// ErrUnavailable is returned when a backend answered with a non-success status
var ErrUnavailable = errors.New("ai service unavailable")

// Speaker turns question text into a playable audio URL
type Speaker interface {
	// Synthesize returns the URL of the generated audio. A disabled speaker returns "".
	Synthesize(ctx context.Context, text string) (string, error)
}

// Evaluator transcribes and scores a recorded answer
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*models.Evaluation, error)
}

// AudioSource reads back stored answer audio
type AudioSource interface {
	Open(ctx context.Context, url string) ([]byte, string, error)
}

// EvaluationRequest describes one answer to score
type EvaluationRequest struct {
	AudioURL     string `json:"audio_url"`
	QuestionText string `json:"question_text"`
	IdealAnswer  string `json:"ideal_answer"`
}

// ClampScore bounds a score to 0..100
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// TruncateForLog trims s to at most limit runes, marking the cut with "..."
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
