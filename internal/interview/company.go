package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

const (
	msgInterviewCreated      = "Interview created successfully."
	msgCandidateSaved        = "Candidate saved successfully."
	msgCandidateAlreadySaved = "Candidate already saved."
)

// InvitationLink builds the public link a candidate opens to start an interview
func (s *Service) InvitationLink(token string) string {
	return s.cfg.PublicBaseURL + "/api/candidate-interview/start/" + token
}

// normalizeEmails trims, validates and de-duplicates emails case-insensitively
func normalizeEmails(v validator, emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for i, raw := range emails {
		email := strings.TrimSpace(raw)
		if !mail.ValidAddress(email) {
			v.check(false, fmt.Sprintf("candidateEmails[%d]", i), fmt.Sprintf("invalid email address: %s", raw))
			continue
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, email)
	}
	return out
}

// CreateInterview builds a screening interview from the company's questions and invites candidates
func (s *Service) CreateInterview(ctx context.Context, company *models.User, req models.CreateInterviewRequest) (*models.CreateInterviewResponse, error) {
	title := strings.TrimSpace(req.Title)

	v := validator{}
	v.check(title != "", "title", "title is required")
	v.check(len(req.Questions) > 0, "questions", "at least one question is required")

	inputs := make([]models.CompanyQuestionInput, 0, len(req.Questions))
	for i, q := range req.Questions {
		tier, err := models.ParseDifficulty(string(q.Difficulty))
		v.check(err == nil, fmt.Sprintf("questions[%d].difficulty", i), fmt.Sprintf("invalid difficulty %q", q.Difficulty))
		v.check(strings.TrimSpace(q.Text) != "", fmt.Sprintf("questions[%d].text", i), "question text is required")
		q.Difficulty = tier
		q.Text = strings.TrimSpace(q.Text)
		inputs = append(inputs, q)
	}
	emails := normalizeEmails(v, req.CandidateEmails)
	if err := v.err(); err != nil {
		return nil, err
	}

	selected, err := SelectByTier(s.selector, title, inputs,
		func(q models.CompanyQuestionInput) models.Difficulty { return q.Difficulty },
		req.QuestionsPerTier,
	)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ci := &models.CompanyInterview{
		ID:        newID(),
		CompanyID: company.ID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
	}
	for i, q := range selected {
		ci.Questions = append(ci.Questions, &models.InterviewQuestion{
			ID:          newID(),
			InterviewID: ci.ID,
			Text:        q.Text,
			IdealAnswer: q.IdealAnswer,
			Difficulty:  q.Difficulty,
			Order:       i + 1,
		})
	}
	invitations, err := s.newInvitations(ci.ID, emails)
	if err != nil {
		return nil, err
	}
	ci.Invitations = invitations

	if err := s.repo.CreateCompanyInterview(ctx, ci); err != nil {
		return nil, fmt.Errorf("failed to create interview: %w", err)
	}

	targets := make([]audioTarget, 0, len(ci.Questions))
	for _, q := range ci.Questions {
		targets = append(targets, s.interviewTarget(q.ID, q.Text))
	}
	s.synthesizeAll(targets)
	s.sendInvitations(company, ci.Title, invitations)

	s.logger.Info("company interview created",
		"interview_id", ci.ID,
		"company_id", company.ID,
		"questions", len(ci.Questions),
		"invitations", len(invitations),
	)

	return &models.CreateInterviewResponse{
		Message:     msgInterviewCreated,
		InterviewID: ci.ID,
		Title:       ci.Title,
		Links:       s.links(invitations),
	}, nil
}

func (s *Service) newInvitations(interviewID string, emails []string) ([]*models.CandidateInvitation, error) {
	now := s.now().UTC()
	invitations := make([]*models.CandidateInvitation, 0, len(emails))
	for _, email := range emails {
		token, err := models.GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invitation token: %w", err)
		}
		invitations = append(invitations, &models.CandidateInvitation{
			ID:             newID(),
			InterviewID:    interviewID,
			CandidateEmail: email,
			Token:          token,
			CreatedAt:      now,
		})
	}
	return invitations, nil
}

func (s *Service) links(invitations []*models.CandidateInvitation) []models.InvitationLink {
	links := make([]models.InvitationLink, 0, len(invitations))
	for _, inv := range invitations {
		links = append(links, models.InvitationLink{
			CandidateEmail: inv.CandidateEmail,
			UniqueLink:     s.InvitationLink(inv.Token),
		})
	}
	return links
}

// sendInvitations mails every invitation in the background. Failures are logged per recipient.
func (s *Service) sendInvitations(company *models.User, title string, invitations []*models.CandidateInvitation) {
	if s.mailer == nil || len(invitations) == 0 {
		return
	}

	s.goBackground("send invitations", func(ctx context.Context) error {
		for _, inv := range invitations {
			err := s.mailer.SendInvitation(ctx, mail.Invitation{
				To:             inv.CandidateEmail,
				CompanyName:    company.CompanyName,
				InterviewTitle: title,
				Link:           s.InvitationLink(inv.Token),
			})
			if err != nil {
				s.logger.Error("failed to send invitation", "to", inv.CandidateEmail, "error", err)
			}
		}
		return nil
	})
}

// ownInterview loads an interview owned by companyID
func (s *Service) ownInterview(ctx context.Context, companyID, interviewID string) (*models.CompanyInterview, error) {
	ci, err := s.repo.GetCompanyInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if ci == nil || ci.CompanyID != companyID {
		return nil, ErrInterviewNotFound
	}
	return ci, nil
}

// InviteCandidates adds invitations to an active interview
func (s *Service) InviteCandidates(ctx context.Context, company *models.User, interviewID string, emails []string) ([]models.InvitationLink, error) {
	v := validator{}
	v.check(len(emails) > 0, "candidateEmails", "candidate email list cannot be empty")
	normalized := normalizeEmails(v, emails)
	if err := v.err(); err != nil {
		return nil, err
	}

	ci, err := s.ownInterview(ctx, company.ID, interviewID)
	if err != nil {
		return nil, err
	}
	if !ci.IsActive {
		return nil, ErrInterviewFinished
	}

	for _, email := range normalized {
		for _, inv := range ci.Invitations {
			if strings.EqualFold(inv.CandidateEmail, email) {
				return nil, fmt.Errorf("%w: %s", ErrCandidateAlreadyInvited, email)
			}
		}
	}

	invitations, err := s.newInvitations(ci.ID, normalized)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateInvitations(ctx, invitations); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrCandidateAlreadyInvited
		}
		return nil, fmt.Errorf("failed to create invitations: %w", err)
	}

	s.sendInvitations(company, ci.Title, invitations)
	s.logger.Info("candidates invited", "interview_id", ci.ID, "count", len(invitations))

	return s.links(invitations), nil
}

// FinishInterview deactivates an interview so no new candidate can start it
func (s *Service) FinishInterview(ctx context.Context, companyID, interviewID string) error {
	ci, err := s.ownInterview(ctx, companyID, interviewID)
	if err != nil {
		return err
	}
	if !ci.IsActive {
		return ErrInterviewFinished
	}

	if err := s.repo.DeactivateInterview(ctx, ci.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrInterviewFinished
		}
		return err
	}

	s.logger.Info("interview finished", "interview_id", ci.ID)
	return nil
}

// InterviewResults lists the candidate sessions of an interview and retries pending evaluations
func (s *Service) InterviewResults(ctx context.Context, companyID, interviewID string) ([]*models.CandidateResult, error) {
	ci, err := s.ownInterview(ctx, companyID, interviewID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.ListCandidateSessions(ctx, ci.ID)
	if err != nil {
		return nil, err
	}

	saved, err := s.savedBySession(ctx, companyID)
	if err != nil {
		return nil, err
	}

	results := make([]*models.CandidateResult, 0, len(sessions))
	for _, session := range sessions {
		s.retryPending(models.KindCandidate, session.Responses)

		if session.AverageScore == nil && session.IsCompleted {
			if avg, ok := CandidateAverage(session.Responses); ok {
				session.AverageScore = &avg
				if s.dispatcher != nil {
					if _, err := s.dispatcher.FinalizeCandidate(ctx, session.ID); err != nil {
						s.logger.Warn("failed to finalize candidate session", "session_id", session.ID, "error", err)
					}
				}
			}
		}

		result := &models.CandidateResult{
			SessionID:      session.ID,
			CandidateEmail: session.CandidateEmail,
			IsCompleted:    session.IsCompleted,
			AverageScore:   session.AverageScore,
			ResponseCount:  len(answerURLs(session.Responses)),
		}
		if sc, ok := saved[session.ID]; ok {
			result.IsSaved = true
			result.SavedCandidateID = sc.ID
		}
		results = append(results, result)
	}

	return results, nil
}

func (s *Service) savedBySession(ctx context.Context, companyID string) (map[string]*models.SavedCandidate, error) {
	list, err := s.repo.ListSavedCandidates(ctx, companyID)
	if err != nil {
		return nil, err
	}
	bySession := make(map[string]*models.SavedCandidate, len(list))
	for _, sc := range list {
		bySession[sc.SessionID] = sc
	}
	return bySession, nil
}

// ListInterviews returns the company's interviews, newest first
func (s *Service) ListInterviews(ctx context.Context, companyID string) ([]*models.InterviewSummary, error) {
	return s.repo.ListCompanyInterviews(ctx, companyID)
}

// GetInterview returns an interview with its ordered questions and invitations
func (s *Service) GetInterview(ctx context.Context, companyID, interviewID string) (*models.CompanyInterview, error) {
	return s.ownInterview(ctx, companyID, interviewID)
}

// ownCandidateSession loads a candidate session whose interview belongs to companyID
func (s *Service) ownCandidateSession(ctx context.Context, companyID, sessionID string) (*models.CandidateSession, *models.CompanyInterview, error) {
	session, err := s.repo.GetCandidateSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	ci, err := s.ownInterview(ctx, companyID, session.InterviewID)
	if err != nil {
		if errors.Is(err, ErrInterviewNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	return session, ci, nil
}

// GetCandidateSession returns a candidate's answers for the company's review
func (s *Service) GetCandidateSession(ctx context.Context, companyID, sessionID string) (*models.CandidateSessionDetail, error) {
	session, _, err := s.ownCandidateSession(ctx, companyID, sessionID)
	if err != nil {
		return nil, err
	}

	detail := &models.CandidateSessionDetail{
		SessionID:      session.ID,
		InterviewID:    session.InterviewID,
		CandidateEmail: session.CandidateEmail,
		StartedAt:      session.StartedAt,
		IsCompleted:    session.IsCompleted,
		AverageScore:   session.AverageScore,
		Responses:      session.Responses,
	}

	sc, err := s.repo.GetSavedCandidateBySession(ctx, companyID, session.ID)
	if err != nil {
		return nil, err
	}
	if sc != nil {
		detail.IsSaved = true
		detail.SavedCandidateID = sc.ID
	}

	return detail, nil
}

// DeleteInterview removes an interview with everything hanging off it, including stored recordings
func (s *Service) DeleteInterview(ctx context.Context, companyID, interviewID string) error {
	ci, err := s.ownInterview(ctx, companyID, interviewID)
	if err != nil {
		return err
	}

	sessions, err := s.repo.ListCandidateSessions(ctx, ci.ID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteCompanyInterview(ctx, ci.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInterviewNotFound
		}
		return err
	}

	for _, session := range sessions {
		s.removeMedia(answerURLs(session.Responses))
	}

	s.logger.Info("interview deleted", "interview_id", ci.ID, "sessions", len(sessions))
	return nil
}

// SaveCandidate bookmarks a candidate session. Saving twice returns the existing bookmark.
func (s *Service) SaveCandidate(ctx context.Context, companyID, sessionID string) (*models.SaveCandidateResponse, error) {
	session, ci, err := s.ownCandidateSession(ctx, companyID, sessionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSavedCandidateBySession(ctx, companyID, session.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &models.SaveCandidateResponse{Message: msgCandidateAlreadySaved, SavedCandidateID: existing.ID}, nil
	}

	sc := &models.SavedCandidate{
		ID:             newID(),
		CompanyID:      companyID,
		SessionID:      session.ID,
		CandidateEmail: session.CandidateEmail,
		InterviewID:    ci.ID,
		InterviewTitle: ci.Title,
		AverageScore:   session.AverageScore,
		SavedAt:        s.now().UTC(),
	}
	if err := s.repo.CreateSavedCandidate(ctx, sc); err != nil {
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, err
		}
		// Saved concurrently
		existing, err := s.repo.GetSavedCandidateBySession(ctx, companyID, session.ID)
		if err != nil || existing == nil {
			return nil, fmt.Errorf("failed to load saved candidate: %w", err)
		}
		return &models.SaveCandidateResponse{Message: msgCandidateAlreadySaved, SavedCandidateID: existing.ID}, nil
	}

	return &models.SaveCandidateResponse{Message: msgCandidateSaved, SavedCandidateID: sc.ID}, nil
}

// ListSavedCandidates returns the company's bookmarks, newest first
func (s *Service) ListSavedCandidates(ctx context.Context, companyID string) ([]*models.SavedCandidate, error) {
	return s.repo.ListSavedCandidates(ctx, companyID)
}

// DeleteSavedCandidate removes a bookmark
func (s *Service) DeleteSavedCandidate(ctx context.Context, companyID, id string) error {
	if err := s.repo.DeleteSavedCandidate(ctx, companyID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSavedCandidateNotFound
		}
		return err
	}
	return nil
}
