// Package gemini scores recorded answers with a Gemini model instead of the external AI service.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/models"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Evaluator implements ai.Evaluator by sending the answer audio inline to Gemini
type Evaluator struct {
	generator contentGenerator
	audio     ai.AudioSource
	logger    *slog.Logger
	maxLogLen int
}

// NewEvaluator creates a Gemini-backed evaluator
func NewEvaluator(generator contentGenerator, audio ai.AudioSource, logger *slog.Logger, maxLogLength int) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{
		generator: generator,
		audio:     audio,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Evaluate loads the answer audio and asks the model for a transcription, score and feedback
func (e *Evaluator) Evaluate(ctx context.Context, req ai.EvaluationRequest) (*models.Evaluation, error) {
	data, mimeType, err := e.audio.Open(ctx, req.AudioURL)
	if err != nil {
		return nil, fmt.Errorf("read answer audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("answer audio %s is empty", req.AudioURL)
	}

	prompt := buildPrompt(req.QuestionText, req.IdealAnswer)

	e.logger.Debug("gemini generate content request",
		"audio_url", req.AudioURL,
		"audio_bytes", len(data),
		"mime_type", mimeType,
		"prompt_length", utf8.RuneCountInString(prompt),
		"prompt_preview", ai.TruncateForLog(prompt, e.maxLogLen),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt, data, mimeType)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini generate content response",
		"audio_url", req.AudioURL,
		"response_length", utf8.RuneCountInString(raw),
		"response_preview", ai.TruncateForLog(raw, e.maxLogLen),
	)

	return parseResponse(raw)
}

func buildPrompt(question, idealAnswer string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question:\n{{QUESTION}}\n\nIdeal answer:\n{{IDEAL_ANSWER}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{QUESTION}}", question)
	prompt = strings.ReplaceAll(prompt, "{{IDEAL_ANSWER}}", idealAnswer)
	return prompt
}

func parseResponse(raw string) (*models.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("parse gemini response: missing numeric score")
	}

	return &models.Evaluation{
		Score:         ai.ClampScore(int(math.Round(score))),
		Feedback:      coerceString(data["feedback"]),
		Transcription: coerceString(data["transcription"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
