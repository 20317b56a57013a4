package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/interview-engine/internal/ai"
)

type fakeGenerator struct {
	response string
	err      error

	prompt   string
	audio    []byte
	mimeType string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	f.prompt = prompt
	f.audio = audio
	f.mimeType = mimeType
	return f.response, f.err
}

type fakeAudio struct {
	data []byte
	mime string
	err  error
}

func (f fakeAudio) Open(ctx context.Context, url string) ([]byte, string, error) {
	return f.data, f.mime, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvaluatorEvaluate(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"score\": \"87.6\", \"feedback\": \" Clear and correct \", \"transcription\": \"Hooks let you use state\"}\n```"}
	ev := NewEvaluator(gen, fakeAudio{data: []byte("RIFF"), mime: "audio/webm"}, discardLogger(), 0)

	got, err := ev.Evaluate(context.Background(), ai.EvaluationRequest{
		AudioURL:     "http://host/uploads/audio/a.webm",
		QuestionText: "What are hooks?",
		IdealAnswer:  "Functions for state and lifecycle",
	})
	require.NoError(t, err)

	assert.Equal(t, 88, got.Score)
	assert.Equal(t, "Clear and correct", got.Feedback)
	assert.Equal(t, "Hooks let you use state", got.Transcription)

	assert.Contains(t, gen.prompt, "What are hooks?")
	assert.Contains(t, gen.prompt, "Functions for state and lifecycle")
	assert.NotContains(t, gen.prompt, "{{QUESTION}}")
	assert.Equal(t, []byte("RIFF"), gen.audio)
	assert.Equal(t, "audio/webm", gen.mimeType)
}

func TestEvaluatorClampsScore(t *testing.T) {
	gen := &fakeGenerator{response: `{"score": 140, "feedback": "ok"}`}
	ev := NewEvaluator(gen, fakeAudio{data: []byte("x"), mime: "audio/wav"}, discardLogger(), 10)

	got, err := ev.Evaluate(context.Background(), ai.EvaluationRequest{AudioURL: "a"})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.Empty(t, got.Transcription)
}

func TestEvaluatorErrors(t *testing.T) {
	tests := []struct {
		name  string
		gen   *fakeGenerator
		audio fakeAudio
		want  string
	}{
		{
			name:  "audio read failure",
			gen:   &fakeGenerator{},
			audio: fakeAudio{err: errors.New("no such file")},
			want:  "read answer audio",
		},
		{
			name:  "empty audio",
			gen:   &fakeGenerator{},
			audio: fakeAudio{},
			want:  "is empty",
		},
		{
			name:  "generator failure",
			gen:   &fakeGenerator{err: errors.New("quota exhausted")},
			audio: fakeAudio{data: []byte("x")},
			want:  "quota exhausted",
		},
		{
			name:  "not json",
			gen:   &fakeGenerator{response: "I think it was fine"},
			audio: fakeAudio{data: []byte("x")},
			want:  "parse gemini response",
		},
		{
			name:  "missing score",
			gen:   &fakeGenerator{response: `{"feedback": "good"}`},
			audio: fakeAudio{data: []byte("x")},
			want:  "missing numeric score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(tt.gen, tt.audio, discardLogger(), 0)
			_, err := ev.Evaluate(context.Background(), ai.EvaluationRequest{AudioURL: "a"})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should contain %q", err, tt.want)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`  {"a":1}  `))
}

func TestBuildPromptUsesEmbeddedTemplate(t *testing.T) {
	prompt := buildPrompt("Q?", "A.")
	assert.Contains(t, prompt, "Q?")
	assert.Contains(t, prompt, "A.")
	assert.Contains(t, prompt, "\"score\"")
}
