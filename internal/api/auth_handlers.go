package api

import (
	"net/http"
	"strings"

	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/models"
)

// --- Account handlers ---

// handleRegister accepts a JSON body or a multipart form carrying an optional logoFile
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	var logo *auth.Logo

	if isMultipart(r) {
		cleanup, ok := s.parseMultipart(w, r)
		if !ok {
			return
		}
		defer cleanup()

		req = models.RegisterRequest{
			Email:       r.FormValue("email"),
			Password:    r.FormValue("password"),
			UserType:    models.UserType(strings.ToLower(r.FormValue("userType"))),
			FirstName:   r.FormValue("firstName"),
			LastName:    r.FormValue("lastName"),
			CompanyName: r.FormValue("companyName"),
		}

		upload, closer, err := formFile(r, "logoFile")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid logoFile upload")
			return
		}
		if upload != nil {
			defer closer.Close()
			logo = &auth.Logo{Reader: upload.Reader, Filename: upload.Filename}
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.accounts.Register(r.Context(), req, logo)
	if err != nil {
		respondServiceError(w, r, err, "register user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	resp, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "log in")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err, "log out")
		return
	}

	respondMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.Me(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		respondServiceError(w, r, err, "get profile")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
