package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// --- Candidate handlers (anonymous, invitation token) ---

type startCandidateRequest struct {
	CandidateEmail string `json:"candidateEmail"`
}

// candidateEmail reads the email from the form or the X-Candidate-Email header
func candidateEmail(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return strings.TrimSpace(fromBody)
	}
	return strings.TrimSpace(r.Header.Get("X-Candidate-Email"))
}

func (s *Server) handleStartCandidate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req startCandidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.interviews.StartCandidate(r.Context(), token, candidateEmail(r, req.CandidateEmail))
	if err != nil {
		respondServiceError(w, r, err, "start interview")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleSubmitCandidate takes a multipart form: sessionId, candidateEmail, questionOrder and audioResponse
func (s *Server) handleSubmitCandidate(w http.ResponseWriter, r *http.Request) {
	cleanup, ok := s.parseMultipart(w, r)
	if !ok {
		return
	}
	defer cleanup()

	sessionID := strings.TrimSpace(r.FormValue("sessionId"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "sessionId is required")
		return
	}
	order, ok := formInt(w, r, "questionOrder")
	if !ok {
		return
	}
	audio, closer, ok := requiredFile(w, r, "audioResponse")
	if !ok {
		return
	}
	defer closer.Close()

	email := candidateEmail(r, r.FormValue("candidateEmail"))
	res, err := s.interviews.SubmitCandidate(r.Context(), sessionID, email, order, *audio)
	if err != nil {
		respondServiceError(w, r, err, "submit response")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleNextCandidate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "sessionId is required")
		return
	}

	view, err := s.interviews.NextCandidate(r.Context(), req.SessionID, candidateEmail(r, req.CandidateEmail))
	if err != nil {
		respondServiceError(w, r, err, "get next question")
		return
	}

	respondJSON(w, http.StatusOK, view)
}
