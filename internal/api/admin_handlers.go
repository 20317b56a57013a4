package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/services"
)

// --- Admin handlers ---

// domainForm reads a domain from a multipart form (id, name, logo) or a JSON body
func (s *Server) domainForm(w http.ResponseWriter, r *http.Request, handle func(req models.DomainRequest, logo *interview.Upload)) {
	if !isMultipart(r) {
		var req models.DomainRequest
		if decodeJSON(w, r, &req) {
			handle(req, nil)
		}
		return
	}

	cleanup, ok := s.parseMultipart(w, r)
	if !ok {
		return
	}
	defer cleanup()

	logo, closer, err := formFile(r, "logo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid logo upload")
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	handle(models.DomainRequest{ID: r.FormValue("id"), Name: r.FormValue("name")}, logo)
}

func (s *Server) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	s.domainForm(w, r, func(req models.DomainRequest, logo *interview.Upload) {
		d, err := s.interviews.CreateDomain(r.Context(), req, logo)
		if err != nil {
			respondServiceError(w, r, err, "create domain")
			return
		}
		respondJSON(w, http.StatusCreated, d)
	})
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := s.interviews.GetDomain(r.Context(), chi.URLParam(r, "domainId"))
	if err != nil {
		respondServiceError(w, r, err, "get domain")
		return
	}

	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	domainID := chi.URLParam(r, "domainId")

	s.domainForm(w, r, func(req models.DomainRequest, logo *interview.Upload) {
		d, err := s.interviews.UpdateDomain(r.Context(), domainID, req, logo)
		if err != nil {
			respondServiceError(w, r, err, "update domain")
			return
		}
		respondJSON(w, http.StatusOK, d)
	})
}

func (s *Server) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	if err := s.interviews.DeleteDomain(r.Context(), chi.URLParam(r, "domainId")); err != nil {
		respondServiceError(w, r, err, "delete domain")
		return
	}

	respondMessage(w, http.StatusOK, "domain deleted")
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	c, err := s.interviews.GetConfiguration(r.Context(), chi.URLParam(r, "domainId"))
	if err != nil {
		respondServiceError(w, r, err, "get configuration")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handlePutConfiguration(w http.ResponseWriter, r *http.Request) {
	var req models.DomainConfiguration
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := s.interviews.PutConfiguration(r.Context(), chi.URLParam(r, "domainId"), req)
	if err != nil {
		respondServiceError(w, r, err, "update configuration")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// Questions

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := s.interviews.CreateQuestion(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "create question")
		return
	}

	respondJSON(w, http.StatusCreated, q)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.interviews.ListQuestions(r.Context(), chi.URLParam(r, "domainId"))
	if err != nil {
		respondServiceError(w, r, err, "list questions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
		"total":     len(questions),
	})
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.interviews.GetQuestion(r.Context(), chi.URLParam(r, "questionId"))
	if err != nil {
		respondServiceError(w, r, err, "get question")
		return
	}

	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := s.interviews.UpdateQuestion(r.Context(), chi.URLParam(r, "questionId"), req)
	if err != nil {
		respondServiceError(w, r, err, "update question")
		return
	}

	respondJSON(w, http.StatusOK, q)
}

// handleUpdateDifficulty reads ?difficulty= or a {"difficulty"} body
func (s *Server) handleUpdateDifficulty(w http.ResponseWriter, r *http.Request) {
	req := models.DifficultyRequest{Difficulty: models.Difficulty(r.URL.Query().Get("difficulty"))}
	if req.Difficulty == "" && !decodeJSON(w, r, &req) {
		return
	}

	q, err := s.interviews.UpdateDifficulty(r.Context(), chi.URLParam(r, "questionId"), req.Difficulty)
	if err != nil {
		respondServiceError(w, r, err, "update difficulty")
		return
	}

	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.interviews.DeleteQuestion(r.Context(), chi.URLParam(r, "questionId")); err != nil {
		respondServiceError(w, r, err, "delete question")
		return
	}

	respondMessage(w, http.StatusOK, "question deleted")
}

// Dashboard

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.interviews.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "get dashboard stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0 // service default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	activity, err := s.interviews.RecentActivity(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err, "get recent activity")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activity": activity,
		"total":    len(activity),
	})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		status := services.StatusOK
		if err := s.interviews.Ping(r.Context()); err != nil {
			status = services.StatusDown
		}
		respondJSON(w, http.StatusOK, &services.SystemStatus{Status: status, Services: []services.ServiceHealth{}})
		return
	}

	respondJSON(w, http.StatusOK, s.status.Status(r.Context()))
}

// Users

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.accounts.ListCompanies(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list companies")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"companies": emptyIfNil(companies),
		"total":     len(companies),
	})
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.DeleteCompany(r.Context(), chi.URLParam(r, "companyId")); err != nil {
		respondServiceError(w, r, err, "delete company")
		return
	}

	respondMessage(w, http.StatusOK, "company deleted")
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	admin, err := s.accounts.CreateAdmin(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "create admin")
		return
	}

	respondJSON(w, http.StatusCreated, admin)
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.accounts.ListAdmins(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list admins")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"admins": emptyIfNil(admins),
		"total":  len(admins),
	})
}

func (s *Server) handleDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	actor := UserFromContext(r.Context())

	if err := s.accounts.DeleteAdmin(r.Context(), actor.ID, chi.URLParam(r, "adminId")); err != nil {
		respondServiceError(w, r, err, "delete admin")
		return
	}

	respondMessage(w, http.StatusOK, "admin deleted")
}

func emptyIfNil(users []*models.User) []*models.User {
	if users == nil {
		return []*models.User{}
	}
	return users
}
