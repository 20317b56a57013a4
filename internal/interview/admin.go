package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// Activity types shown on the admin dashboard
const (
	ActivityDomainCreated   = "domain_created"
	ActivityDomainUpdated   = "domain_updated"
	ActivityDomainDeleted   = "domain_deleted"
	ActivityQuestionCreated = "question_created"
	ActivityQuestionDeleted = "question_deleted"
)

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 50
)

// --- Domains ---

// CreateDomain adds a domain, storing its logo when one is uploaded
func (s *Service) CreateDomain(ctx context.Context, req models.DomainRequest, logo *Upload) (*models.Domain, error) {
	name := strings.TrimSpace(req.Name)

	v := validator{}
	v.check(name != "", "name", "domain name is required")
	if err := v.err(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDomainExists
	}

	d := &models.Domain{
		ID:        newID(),
		Name:      name,
		LogoURL:   req.LogoURL,
		CreatedAt: s.now().UTC(),
	}
	if logo != nil {
		url, err := s.media.SaveLogo(logo.Reader, logo.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store domain logo: %w", err)
		}
		d.LogoURL = url
	}

	if err := s.repo.CreateDomain(ctx, d); err != nil {
		if logo != nil {
			s.removeMedia([]string{d.LogoURL})
		}
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDomainExists
		}
		return nil, err
	}

	s.logActivity(ctx, ActivityDomainCreated, "Domain '%s' was created", d.Name)
	s.logger.Info("domain created", "domain_id", d.ID, "name", d.Name)
	return d, nil
}

// GetDomain returns a domain with its configuration
func (s *Service) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	d, err := s.repo.GetDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDomainNotFound
	}
	return d, nil
}

// UpdateDomain renames a domain and optionally replaces its logo
func (s *Service) UpdateDomain(ctx context.Context, routeID string, req models.DomainRequest, logo *Upload) (*models.Domain, error) {
	if req.ID != routeID {
		return nil, ErrDomainIDMismatch
	}
	name := strings.TrimSpace(req.Name)

	v := validator{}
	v.check(name != "", "name", "domain name is required")
	if err := v.err(); err != nil {
		return nil, err
	}

	d, err := s.GetDomain(ctx, routeID)
	if err != nil {
		return nil, err
	}

	other, err := s.repo.GetDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if other != nil && other.ID != d.ID {
		return nil, ErrDomainExists
	}

	oldLogo := d.LogoURL
	d.Name = name
	if logo != nil {
		url, err := s.media.SaveLogo(logo.Reader, logo.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store domain logo: %w", err)
		}
		d.LogoURL = url
	}

	if err := s.repo.UpdateDomain(ctx, d); err != nil {
		if logo != nil {
			s.removeMedia([]string{d.LogoURL})
		}
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrDomainNotFound
		case errors.Is(err, storage.ErrDuplicate):
			return nil, ErrDomainExists
		}
		return nil, err
	}
	if logo != nil && oldLogo != "" {
		s.removeMedia([]string{oldLogo})
	}

	s.logActivity(ctx, ActivityDomainUpdated, "Domain '%s' was updated", d.Name)
	return d, nil
}

// DeleteDomain removes a domain with its questions, configuration and practice sessions
func (s *Service) DeleteDomain(ctx context.Context, id string) error {
	d, err := s.GetDomain(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteDomain(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrDomainNotFound
		}
		return err
	}
	s.removeMedia([]string{d.LogoURL})

	s.logActivity(ctx, ActivityDomainDeleted, "Domain '%s' was deleted", d.Name)
	s.logger.Info("domain deleted", "domain_id", id, "name", d.Name)
	return nil
}

// --- Configuration ---

// GetConfiguration returns the tier counts of a domain, zeros when none were set
func (s *Service) GetConfiguration(ctx context.Context, domainID string) (*models.DomainConfiguration, error) {
	d, err := s.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if d.Configuration == nil {
		return &models.DomainConfiguration{DomainID: d.ID}, nil
	}
	return d.Configuration, nil
}

// PutConfiguration creates or replaces the tier counts of a domain
func (s *Service) PutConfiguration(ctx context.Context, domainID string, c models.DomainConfiguration) (*models.DomainConfiguration, error) {
	if err := c.Tiers().Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"configuration": err.Error()}}
	}

	if _, err := s.GetDomain(ctx, domainID); err != nil {
		return nil, err
	}

	c.DomainID = domainID
	if err := s.repo.UpsertDomainConfiguration(ctx, &c); err != nil {
		return nil, err
	}

	s.logger.Info("domain configuration updated", "domain_id", domainID, "total", c.Tiers().Total())
	return &c, nil
}

// --- Questions ---

func validateQuestion(req models.QuestionRequest, requireDomain bool) (models.QuestionRequest, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.IdealAnswer = strings.TrimSpace(req.IdealAnswer)

	v := validator{}
	if requireDomain {
		v.check(req.DomainID != "", "domainId", "domain is required")
	}
	v.check(req.Text != "", "text", "question text is required")
	v.check(req.IdealAnswer != "", "idealAnswer", "ideal answer is required")
	tier, err := models.ParseDifficulty(string(req.Difficulty))
	v.check(err == nil, "difficulty", fmt.Sprintf("invalid difficulty %q", req.Difficulty))
	req.Difficulty = tier

	return req, v.err()
}

// CreateQuestion adds a question to a domain bank and synthesizes its audio in the background
func (s *Service) CreateQuestion(ctx context.Context, req models.QuestionRequest) (*models.Question, error) {
	req, err := validateQuestion(req, true)
	if err != nil {
		return nil, err
	}

	d, err := s.GetDomain(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		ID:          newID(),
		DomainID:    d.ID,
		DomainName:  d.Name,
		Text:        req.Text,
		IdealAnswer: req.IdealAnswer,
		AudioURL:    strings.TrimSpace(req.AudioURL),
		Difficulty:  req.Difficulty,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}

	if q.AudioURL == "" {
		s.synthesizeAll([]audioTarget{s.bankTarget(q.ID, q.Text)})
	}

	s.logActivity(ctx, ActivityQuestionCreated, "Question added to '%s' (%s)", d.Name, q.Difficulty)
	return q, nil
}

// GetQuestion returns a bank question
func (s *Service) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrQuestionNotFound
	}
	return q, nil
}

// ListQuestions returns a domain's bank, easiest tier first
func (s *Service) ListQuestions(ctx context.Context, domainID string) ([]*models.Question, error) {
	if _, err := s.GetDomain(ctx, domainID); err != nil {
		return nil, err
	}
	return s.repo.ListQuestions(ctx, domainID)
}

// UpdateQuestion edits a bank question. Changing the text drops the old audio and re-synthesizes it.
func (s *Service) UpdateQuestion(ctx context.Context, id string, req models.QuestionRequest) (*models.Question, error) {
	req, err := validateQuestion(req, false)
	if err != nil {
		return nil, err
	}

	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	textChanged := q.Text != req.Text
	q.Text = req.Text
	q.IdealAnswer = req.IdealAnswer
	q.Difficulty = req.Difficulty
	switch {
	case strings.TrimSpace(req.AudioURL) != "":
		q.AudioURL = strings.TrimSpace(req.AudioURL)
	case textChanged:
		q.AudioURL = ""
	}

	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	if q.AudioURL == "" {
		s.synthesizeAll([]audioTarget{s.bankTarget(q.ID, q.Text)})
	}
	return q, nil
}

// UpdateDifficulty moves a bank question to another tier
func (s *Service) UpdateDifficulty(ctx context.Context, id string, difficulty models.Difficulty) (*models.Question, error) {
	tier, err := models.ParseDifficulty(string(difficulty))
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"difficulty": err.Error()}}
	}

	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	q.Difficulty = tier
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// DeleteQuestion removes a bank question
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.logActivity(ctx, ActivityQuestionDeleted, "Question removed from '%s'", q.DomainName)
	return nil
}

// --- Dashboard ---

// Dashboard counts the platform's entities
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	return s.repo.Stats(ctx)
}

// RecentActivity returns the newest activity entries. limit is clamped to 1..50, 0 means 10.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	switch {
	case limit == 0:
		limit = defaultActivityLimit
	case limit < 1:
		limit = 1
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	entries, err := s.repo.ListRecentActivity(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.ActivityLog{}
	}
	return entries, nil
}
