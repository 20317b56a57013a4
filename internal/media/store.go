// Package media stores uploaded answer audio and company logos on local disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	audioDir = "audio"
	logoDir  = "logos"

	// URLPrefix is the path under which stored files are served
	URLPrefix = "/uploads/"

	defaultMaxLogoBytes = 5 << 20
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidURL      = errors.New("url does not point to stored media")
)

var allowedLogoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var audioExtsByMIME = map[string]string{
	"audio/webm":  ".webm",
	"video/webm":  ".webm",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/wave":  ".wav",
	"audio/x-wav": ".wav",
	"audio/ogg":   ".ogg",
	"audio/aac":   ".aac",
}

var audioMIMEByExt = map[string]string{
	".webm": "audio/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
}

// Store keeps files under root and hands out URLs below baseURL
type Store struct {
	root         string
	baseURL      string
	maxLogoBytes int64
}

// NewStore creates the storage directories and returns a Store
func NewStore(root, baseURL string, maxLogoBytes int64) (*Store, error) {
	if root == "" {
		return nil, errors.New("media root is required")
	}
	if maxLogoBytes <= 0 {
		maxLogoBytes = defaultMaxLogoBytes
	}

	for _, dir := range []string{audioDir, logoDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media directory: %w", err)
		}
	}

	return &Store{
		root:         root,
		baseURL:      strings.TrimRight(baseURL, "/"),
		maxLogoBytes: maxLogoBytes,
	}, nil
}

// Root returns the directory served at URLPrefix
func (s *Store) Root() string {
	return s.root
}

// SaveAudio stores an answer recording and returns its public URL
func (s *Store) SaveAudio(r io.Reader, filename, contentType string) (string, error) {
	return s.save(r, audioDir, audioExtension(filename, contentType), -1)
}

// SaveLogo stores a company logo and returns its public URL
func (s *Store) SaveLogo(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedLogoExts[ext] {
		return "", fmt.Errorf("%w: %q (allowed: .jpg, .jpeg, .png, .gif)", ErrUnsupportedType, ext)
	}
	return s.save(r, logoDir, ext, s.maxLogoBytes)
}

func (s *Store) save(r io.Reader, dir, ext string, limit int64) (string, error) {
	name := uuid.New().String() + ext
	full := filepath.Join(s.root, dir, name)

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && limit > 0 && n > limit {
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, limit)
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.baseURL + URLPrefix + dir + "/" + name, nil
}

// Delete removes a stored file by URL. Missing files and foreign URLs are ignored.
func (s *Store) Delete(url string) error {
	full, err := s.pathFor(url)
	if err != nil {
		return nil
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", url, err)
	}
	return nil
}

// Open returns the content and MIME type of a stored file
func (s *Store) Open(ctx context.Context, url string) ([]byte, string, error) {
	full, err := s.pathFor(url)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	return data, contentTypeFor(full, data), nil
}

// pathFor maps a public URL back to a file inside root
func (s *Store) pathFor(url string) (string, error) {
	idx := strings.Index(url, URLPrefix)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	rel := path.Clean(url[idx+len(URLPrefix):])
	dir, name := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if (dir != audioDir && dir != logoDir) || name == "" || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	return filepath.Join(s.root, dir, name), nil
}

func audioExtension(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); audioMIMEByExt[ext] != "" {
		return ext
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if ext, ok := audioExtsByMIME[mediaType]; ok {
			return ext
		}
	}

	return ".webm"
}

func contentTypeFor(full string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(full))
	if t, ok := audioMIMEByExt[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
