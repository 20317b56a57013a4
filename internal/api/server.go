package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/media"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/services"
)

// StatusReporter reports dependency health for the admin status page
type StatusReporter interface {
	Status(ctx context.Context) *services.SystemStatus
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	interviews     *interview.Service
	accounts       *auth.Service
	hub            *Hub
	status         StatusReporter
	mediaRoot      string
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server. status may be nil. Files under mediaRoot are
// served read-only at media.URLPrefix.
func NewServer(
	cfg config.ServerConfig,
	interviews *interview.Service,
	accounts *auth.Service,
	hub *Hub,
	status StatusReporter,
	mediaRoot string,
) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if hub == nil {
		hub = NewHub()
	}

	s := &Server{
		config:         cfg,
		interviews:     interviews,
		accounts:       accounts,
		hub:            hub,
		status:         status,
		mediaRoot:      mediaRoot,
		authMiddleware: NewAuthMiddleware(accounts),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Candidate-Email", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Long-lived websocket, outside the request timeout
	r.With(s.authMiddleware.Authenticate, s.authMiddleware.RequireRole(models.UserRegular)).
		Get("/api/interview/sessions/{sessionId}/events", s.handleSessionEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))

		// Health check (public)
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		// Uploaded media (public, read-only)
		if s.mediaRoot != "" {
			fs := http.StripPrefix(media.URLPrefix, http.FileServer(http.Dir(s.mediaRoot)))
			r.Get(media.URLPrefix+"*", fs.ServeHTTP)
		}

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware.Authenticate)
				r.Post("/logout", s.handleLogout)
				r.Get("/me", s.handleMe)
			})
		})

		// Anonymous candidates, authorized by invitation token and email
		r.Route("/api/candidate-interview", func(r chi.Router) {
			r.Post("/start/{token}", s.handleStartCandidate)
			r.Post("/submit-response", s.handleSubmitCandidate)
			r.Post("/next-question", s.handleNextCandidate)
		})

		// Practice (regular users)
		r.Route("/api/interview", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)
			r.Use(s.authMiddleware.RequireRole(models.UserRegular))

			r.Get("/domains", s.handleListDomains)
			r.Post("/start", s.handleStartPractice)
			r.Post("/submit-response", s.handleSubmitPractice)
			r.Post("/next-question", s.handleNextPractice)
			r.Get("/sessions", s.handleListPractice)
			r.Delete("/sessions/{sessionId}", s.handleDeletePractice)
			r.Get("/results/{sessionId}", s.handlePracticeResults)
		})

		// Company screening interviews
		r.Route("/api/company-interview", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)
			r.Use(s.authMiddleware.RequireRole(models.UserCompany))

			r.Post("/create", s.handleCreateInterview)
			r.Get("/list", s.handleListInterviews)
			r.Get("/results/{interviewId}", s.handleInterviewResults)
			r.Get("/saved", s.handleListSavedCandidates)
			r.Delete("/saved/{savedCandidateId}", s.handleDeleteSavedCandidate)
			r.Get("/session/{sessionId}", s.handleGetCandidateSession)
			r.Post("/session/{sessionId}/save", s.handleSaveCandidate)

			r.Route("/{interviewId}", func(r chi.Router) {
				r.Get("/", s.handleGetInterview)
				r.Delete("/", s.handleDeleteInterview)
				r.Post("/invite", s.handleInviteCandidates)
				r.Post("/finish", s.handleFinishInterview)
			})
		})

		// Administration
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)
			r.Use(s.authMiddleware.RequireRole(models.UserAdmin))

			r.Route("/domains", func(r chi.Router) {
				r.Post("/create", s.handleCreateDomain)
				r.Get("/all", s.handleListDomains)

				r.Route("/questions", func(r chi.Router) {
					r.Post("/create", s.handleCreateQuestion)
					r.Get("/{questionId}", s.handleGetQuestion)
					r.Put("/{questionId}/update", s.handleUpdateQuestion)
					r.Patch("/{questionId}/difficulty", s.handleUpdateDifficulty)
					r.Delete("/{questionId}/delete", s.handleDeleteQuestion)
				})

				r.Route("/{domainId}", func(r chi.Router) {
					r.Get("/", s.handleGetDomain)
					r.Put("/", s.handleUpdateDomain)
					r.Delete("/delete", s.handleDeleteDomain)
					r.Get("/configuration", s.handleGetConfiguration)
					r.Put("/configuration", s.handlePutConfiguration)
					r.Get("/questions", s.handleListQuestions)
				})
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/stats", s.handleDashboardStats)
				r.Get("/activity/recent", s.handleRecentActivity)
				r.Get("/status", s.handleSystemStatus)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/companies", s.handleListCompanies)
				r.Delete("/companies/{companyId}", s.handleDeleteCompany)
				r.Get("/admins", s.handleListAdmins)
				r.Post("/admins", s.handleCreateAdmin)
				r.Delete("/admins/{adminId}", s.handleDeleteAdmin)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
