package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/interview"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondAPIError(w, status, &apiError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error:   e,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.interviews.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Request helpers

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// multipartMemory is how much of a multipart body is buffered in memory before spilling to disk
const multipartMemory = 8 << 20

// parseMultipart parses a multipart form capped at the configured upload size.
// The caller must call cleanup when done with the files.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) (cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return nil, false
	}

	return func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", "error", err)
		}
	}, true
}

// formFile opens an uploaded file. It returns nil when the field is absent.
func formFile(r *http.Request, field string) (*interview.Upload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if header.Size == 0 {
		file.Close()
		return nil, nil, nil
	}

	return &interview.Upload{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, file, nil
}

// requiredFile is formFile for mandatory uploads
func requiredFile(w http.ResponseWriter, r *http.Request, field string) (*interview.Upload, io.Closer, bool) {
	upload, closer, err := formFile(r, field)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid "+field+" upload")
		return nil, nil, false
	}
	if upload == nil {
		respondAPIError(w, http.StatusBadRequest, &apiError{
			Code:    "validation_error",
			Message: field + " is required",
			Fields:  map[string]string{field: "is required"},
		})
		return nil, nil, false
	}
	return upload, closer, true
}

func formInt(w http.ResponseWriter, r *http.Request, field string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(r.FormValue(field)))
	if err != nil {
		respondAPIError(w, http.StatusBadRequest, &apiError{
			Code:    "validation_error",
			Message: field + " must be an integer",
			Fields:  map[string]string{field: "must be an integer"},
		})
		return 0, false
	}
	return value, true
}
