package storage

import (
	"context"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Getters return (nil, nil) when the record does not exist. Mutations of a missing
// record return an error wrapping ErrNotFound.

// UserStore persists accounts and bearer tokens
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error)
	DeleteUser(ctx context.Context, id string, userType models.UserType) error

	CreateAuthToken(ctx context.Context, t *models.AuthToken) error
	GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error)
	TouchAuthToken(ctx context.Context, token string) error
	DeleteAuthToken(ctx context.Context, token string) error
	DeleteExpiredAuthTokens(ctx context.Context) (int64, error)
}

// BankStore persists domains, their question banks and the admin activity feed
type BankStore interface {
	CreateDomain(ctx context.Context, d *models.Domain) error
	GetDomain(ctx context.Context, id string) (*models.Domain, error)
	GetDomainByName(ctx context.Context, name string) (*models.Domain, error)
	ListDomains(ctx context.Context) ([]*models.Domain, error)
	UpdateDomain(ctx context.Context, d *models.Domain) error
	DeleteDomain(ctx context.Context, id string) error
	UpsertDomainConfiguration(ctx context.Context, c *models.DomainConfiguration) error

	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	ListQuestions(ctx context.Context, domainID string) ([]*models.Question, error)
	UpdateQuestion(ctx context.Context, q *models.Question) error
	SetQuestionAudio(ctx context.Context, id, audioURL string) error
	DeleteQuestion(ctx context.Context, id string) error

	LogActivity(ctx context.Context, activityType, description string) error
	ListRecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// SessionStore persists practice and candidate sessions and their responses
type SessionStore interface {
	// Practice
	CreatePracticeSession(ctx context.Context, s *models.PracticeSession) error
	GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error)
	ListPracticeSessions(ctx context.Context, userID string) ([]*models.PracticeSummary, error)
	DeletePracticeSession(ctx context.Context, id string) error

	// Responses
	GetResponse(ctx context.Context, kind models.SessionKind, id string) (*models.Response, error)
	RecordAnswer(ctx context.Context, kind models.SessionKind, sessionID, responseID, audioURL string) (bool, error)
	SaveEvaluation(ctx context.Context, kind models.SessionKind, responseID string, ev *models.Evaluation) error
	RecordEvaluationFailure(ctx context.Context, kind models.SessionKind, responseID string) (int, error)
	ListPendingEvaluations(ctx context.Context, answeredBefore time.Time, maxAttempts, limit int) ([]models.PendingEvaluation, error)

	// Company interviews
	CreateCompanyInterview(ctx context.Context, ci *models.CompanyInterview) error
	GetCompanyInterview(ctx context.Context, id string) (*models.CompanyInterview, error)
	ListCompanyInterviews(ctx context.Context, companyID string) ([]*models.InterviewSummary, error)
	DeactivateInterview(ctx context.Context, id string) error
	DeleteCompanyInterview(ctx context.Context, id string) error
	SetInterviewQuestionAudio(ctx context.Context, id, audioURL string) error

	// Invitations and candidate sessions
	CreateInvitations(ctx context.Context, invitations []*models.CandidateInvitation) error
	GetInvitationByToken(ctx context.Context, token string) (*models.CandidateInvitation, error)
	GetInvitationBySession(ctx context.Context, sessionID string) (*models.CandidateInvitation, error)
	StartCandidateSession(ctx context.Context, invitationID string, s *models.CandidateSession) error
	GetCandidateSession(ctx context.Context, id string) (*models.CandidateSession, error)
	ListCandidateSessions(ctx context.Context, interviewID string) ([]*models.CandidateSession, error)
	SetCandidateAverage(ctx context.Context, sessionID string, average float64) error
	ListUnscoredCompletedSessions(ctx context.Context) ([]string, error)

	// Saved candidates
	CreateSavedCandidate(ctx context.Context, sc *models.SavedCandidate) error
	GetSavedCandidateBySession(ctx context.Context, companyID, sessionID string) (*models.SavedCandidate, error)
	ListSavedCandidates(ctx context.Context, companyID string) ([]*models.SavedCandidate, error)
	DeleteSavedCandidate(ctx context.Context, companyID, id string) error
}

// Repository defines the interface for interview-engine persistence
type Repository interface {
	UserStore
	BankStore
	SessionStore

	// Health
	Ping(ctx context.Context) error
	Close() error
}

var _ Repository = (*PostgresRepository)(nil)
