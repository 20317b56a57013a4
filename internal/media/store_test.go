package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "http://localhost:8080/", 16)
	require.NoError(t, err)
	return s
}

func TestAudioExtension(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"answer.ogg", "audio/webm", ".ogg"},
		{"blob", "audio/webm;codecs=opus", ".webm"},
		{"blob", "audio/mpeg", ".mp3"},
		{"", "audio/wav", ".wav"},
		{"", "audio/aac", ".aac"},
		{"", "application/octet-stream", ".webm"},
		{"", "", ".webm"},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"|"+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, audioExtension(tt.filename, tt.contentType))
		})
	}
}

func TestSaveAudioAndOpen(t *testing.T) {
	s := newTestStore(t)

	url, err := s.SaveAudio(strings.NewReader("recorded answer, longer than logo limit"), "blob", "audio/mpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/audio/"), url)
	assert.True(t, strings.HasSuffix(url, ".mp3"), url)

	data, mimeType, err := s.Open(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "recorded answer, longer than logo limit", string(data))
	assert.Equal(t, "audio/mpeg", mimeType)

	require.NoError(t, s.Delete(url))
	_, _, err = s.Open(context.Background(), url)
	assert.Error(t, err)

	// Deleting twice is fine
	require.NoError(t, s.Delete(url))
}

func TestSaveLogo(t *testing.T) {
	s := newTestStore(t)

	url, err := s.SaveLogo(bytes.NewReader([]byte("png-bytes")), "Logo.PNG")
	require.NoError(t, err)
	assert.Contains(t, url, "/uploads/logos/")
	assert.True(t, strings.HasSuffix(url, ".png"))

	_, err = s.SaveLogo(strings.NewReader("x"), "logo.svg")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.SaveLogo(strings.NewReader(strings.Repeat("x", 17)), "big.jpg")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(s.Root(), logoDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "oversized logo must not be left on disk")
}

func TestPathForRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, url := range []string{
		"http://localhost:8080/uploads/../../etc/passwd",
		"http://localhost:8080/uploads/audio/",
		"http://localhost:8080/static/audio/a.webm",
		"http://localhost:8080/uploads/secrets/a.webm",
	} {
		_, err := s.pathFor(url)
		assert.ErrorIs(t, err, ErrInvalidURL, url)
	}

	// Foreign URLs are silently ignored on delete
	assert.NoError(t, s.Delete("http://ai.local/temp/audio/tts/q.wav"))
}
