package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// --- Practice handlers (regular users) ---

type startPracticeRequest struct {
	DomainID string `json:"domainId"`
}

type sessionRequest struct {
	SessionID      string `json:"sessionId"`
	CandidateEmail string `json:"candidateEmail,omitempty"`
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.interviews.ListDomains(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list domains")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"domains": domains,
		"total":   len(domains),
	})
}

func (s *Server) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	var req startPracticeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.DomainID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "domainId is required")
		return
	}

	resp, err := s.interviews.StartPractice(r.Context(), UserFromContext(r.Context()).ID, req.DomainID)
	if err != nil {
		respondServiceError(w, r, err, "start practice session")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// handleSubmitPractice takes a multipart form: sessionId, questionOrder and audioResponse
func (s *Server) handleSubmitPractice(w http.ResponseWriter, r *http.Request) {
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

	res, err := s.interviews.SubmitPractice(r.Context(), UserFromContext(r.Context()).ID, sessionID, order, *audio)
	if err != nil {
		respondServiceError(w, r, err, "submit response")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleNextPractice(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "sessionId is required")
		return
	}

	view, err := s.interviews.NextPractice(r.Context(), UserFromContext(r.Context()).ID, req.SessionID)
	if err != nil {
		respondServiceError(w, r, err, "get next question")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListPractice(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.interviews.ListPractice(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		respondServiceError(w, r, err, "list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handlePracticeResults(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	results, err := s.interviews.PracticeResults(r.Context(), UserFromContext(r.Context()).ID, sessionID)
	if err != nil {
		respondServiceError(w, r, err, "get results")
		return
	}

	respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleDeletePractice(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if err := s.interviews.DeletePractice(r.Context(), UserFromContext(r.Context()).ID, sessionID); err != nil {
		respondServiceError(w, r, err, "delete session")
		return
	}

	respondMessage(w, http.StatusOK, "session deleted")
}
