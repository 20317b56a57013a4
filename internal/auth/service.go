// Package auth manages accounts, password login and bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfDeletion       = errors.New("you cannot delete your own account")
)

// Activity types written to the admin feed
const (
	ActivityCompanyDeleted = "company_deleted"
	ActivityAdminCreated   = "admin_created"
	ActivityAdminRemoved   = "admin_removed"
	ActivityUserRegistered = "user_registered"
)

const minPasswordLength = 6

// Store is the persistence auth needs
type Store interface {
	storage.UserStore
	LogActivity(ctx context.Context, activityType, description string) error
}

// LogoStore persists company logos
type LogoStore interface {
	SaveLogo(r io.Reader, filename string) (string, error)
	Delete(url string) error
}

// Logo is an uploaded company logo
type Logo struct {
	Reader   io.Reader
	Filename string
}

// Config holds auth settings
type Config struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// Service implements registration, login and user management
type Service struct {
	store  Store
	logos  LogoStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new auth Service
func NewService(store Store, logos LogoStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logos: logos, cfg: cfg, logger: logger, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("invalid email address")
	}
	return email, nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", invalid("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// createUser checks the email is free and stores u
func (s *Service) createUser(ctx context.Context, u *models.User) error {
	existing, err := s.store.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// Register creates a regular or company account. Companies may upload a logo.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest, logo *Logo) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Type:      req.UserType,
		CreatedAt: s.now().UTC(),
	}

	switch req.UserType {
	case models.UserRegular:
		u.FirstName = strings.TrimSpace(req.FirstName)
		u.LastName = strings.TrimSpace(req.LastName)
		if u.FirstName == "" || u.LastName == "" {
			return nil, invalid("first and last name are required")
		}
	case models.UserCompany:
		u.CompanyName = strings.TrimSpace(req.CompanyName)
		if u.CompanyName == "" {
			return nil, invalid("company name is required")
		}
	default:
		return nil, invalid("user type must be regular or company")
	}

	if u.PasswordHash, err = s.hash(req.Password); err != nil {
		return nil, err
	}

	if logo != nil && u.Type == models.UserCompany && s.logos != nil {
		url, err := s.logos.SaveLogo(logo.Reader, logo.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store logo: %w", err)
		}
		u.LogoURL = url
	}

	if err := s.createUser(ctx, u); err != nil {
		s.removeLogo(u.LogoURL)
		return nil, err
	}

	s.logActivity(ctx, ActivityUserRegistered, "New %s account %s", u.Type, u.Email)
	s.logger.Info("user registered", "user_id", u.ID, "type", u.Type)
	return u, nil
}

// Login verifies credentials and issues a bearer token
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := models.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.now().UTC()
	t := &models.AuthToken{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.store.CreateAuthToken(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", u.ID, "token", t.Masked())

	return &models.AuthResponse{
		UserID:    u.ID,
		Email:     u.Email,
		UserType:  u.Type,
		Roles:     u.Roles(),
		LogoURL:   u.LogoURL,
		Token:     token,
		ExpiresAt: t.ExpiresAt,
	}, nil
}

// Authenticate resolves a bearer token to its user
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	t, err := s.store.GetAuthToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil || s.now().After(t.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	u, err := s.store.GetUserByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// Touch records token use
func (s *Service) Touch(ctx context.Context, token string) error {
	return s.store.TouchAuthToken(ctx, token)
}

// Logout revokes a token
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteAuthToken(ctx, token)
}

// Me returns the profile of userID
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// PurgeExpiredTokens removes expired tokens and returns how many were deleted
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredAuthTokens(ctx)
}

// --- User management (admin) ---

// EnsureAdmin creates the bootstrap admin unless the email is already registered
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	existing, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if _, err := s.CreateAdmin(ctx, models.CreateAdminRequest{Email: email, Password: password, Department: "Platform"}); err != nil {
		return false, err
	}
	return true, nil
}

// CreateAdmin adds an admin account
func (s *Service) CreateAdmin(ctx context.Context, req models.CreateAdminRequest) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:         uuid.New().String(),
		Email:      email,
		Type:       models.UserAdmin,
		Department: strings.TrimSpace(req.Department),
		CreatedAt:  s.now().UTC(),
	}
	if u.PasswordHash, err = s.hash(req.Password); err != nil {
		return nil, err
	}

	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}

	s.logActivity(ctx, ActivityAdminCreated, "Admin %s was created", u.Email)
	return u, nil
}

// ListAdmins returns every admin account
func (s *Service) ListAdmins(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx, models.UserAdmin)
}

// DeleteAdmin removes an admin other than actorID
func (s *Service) DeleteAdmin(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelfDeletion
	}

	u, err := s.deleteUser(ctx, id, models.UserAdmin)
	if err != nil {
		return err
	}

	s.logActivity(ctx, ActivityAdminRemoved, "Admin %s was removed", u.Email)
	return nil
}

// ListCompanies returns every company account
func (s *Service) ListCompanies(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx, models.UserCompany)
}

// DeleteCompany removes a company with its interviews and logo
func (s *Service) DeleteCompany(ctx context.Context, id string) error {
	u, err := s.deleteUser(ctx, id, models.UserCompany)
	if err != nil {
		return err
	}

	s.removeLogo(u.LogoURL)
	s.logActivity(ctx, ActivityCompanyDeleted, "Company '%s' was deleted", u.CompanyName)
	return nil
}

func (s *Service) deleteUser(ctx context.Context, id string, userType models.UserType) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Type != userType {
		return nil, ErrUserNotFound
	}

	if err := s.store.DeleteUser(ctx, id, userType); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info("user deleted", "user_id", id, "type", userType)
	return u, nil
}

func (s *Service) removeLogo(url string) {
	if url == "" || s.logos == nil {
		return
	}
	if err := s.logos.Delete(url); err != nil {
		s.logger.Warn("failed to delete logo", "url", url, "error", err)
	}
}

func (s *Service) logActivity(ctx context.Context, activityType, format string, args ...any) {
	if err := s.store.LogActivity(ctx, activityType, fmt.Sprintf(format, args...)); err != nil {
		s.logger.Warn("failed to log activity", "type", activityType, "error", err)
	}
}
