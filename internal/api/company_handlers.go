package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

// --- Company handlers ---

type inviteRequest struct {
	CandidateEmails []string `json:"candidateEmails"`
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInterviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.interviews.CreateInterview(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		respondServiceError(w, r, err, "create interview")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleInviteCandidates(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")

	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	links, err := s.interviews.InviteCandidates(r.Context(), UserFromContext(r.Context()), interviewID, req.CandidateEmails)
	if err != nil {
		respondServiceError(w, r, err, "invite candidates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"links": links,
		"total": len(links),
	})
}

func (s *Server) handleFinishInterview(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")

	if err := s.interviews.FinishInterview(r.Context(), UserFromContext(r.Context()).ID, interviewID); err != nil {
		respondServiceError(w, r, err, "finish interview")
		return
	}

	respondMessage(w, http.StatusOK, "interview finished")
}

func (s *Server) handleInterviewResults(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")

	results, err := s.interviews.InterviewResults(r.Context(), UserFromContext(r.Context()).ID, interviewID)
	if err != nil {
		respondServiceError(w, r, err, "get interview results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	interviews, err := s.interviews.ListInterviews(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		respondServiceError(w, r, err, "list interviews")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"interviews": interviews,
		"total":      len(interviews),
	})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")

	ci, err := s.interviews.GetInterview(r.Context(), UserFromContext(r.Context()).ID, interviewID)
	if err != nil {
		respondServiceError(w, r, err, "get interview")
		return
	}

	respondJSON(w, http.StatusOK, ci)
}

func (s *Server) handleGetCandidateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	detail, err := s.interviews.GetCandidateSession(r.Context(), UserFromContext(r.Context()).ID, sessionID)
	if err != nil {
		respondServiceError(w, r, err, "get candidate session")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewId")

	if err := s.interviews.DeleteInterview(r.Context(), UserFromContext(r.Context()).ID, interviewID); err != nil {
		respondServiceError(w, r, err, "delete interview")
		return
	}

	respondMessage(w, http.StatusOK, "interview deleted")
}

func (s *Server) handleSaveCandidate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	resp, err := s.interviews.SaveCandidate(r.Context(), UserFromContext(r.Context()).ID, sessionID)
	if err != nil {
		respondServiceError(w, r, err, "save candidate")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSavedCandidates(w http.ResponseWriter, r *http.Request) {
	saved, err := s.interviews.ListSavedCandidates(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		respondServiceError(w, r, err, "list saved candidates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"savedCandidates": saved,
		"total":           len(saved),
	})
}

func (s *Server) handleDeleteSavedCandidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "savedCandidateId")

	if err := s.interviews.DeleteSavedCandidate(r.Context(), UserFromContext(r.Context()).ID, id); err != nil {
		respondServiceError(w, r, err, "remove saved candidate")
		return
	}

	respondMessage(w, http.StatusOK, "saved candidate removed")
}
