package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// StartCandidate redeems an invitation token and opens the candidate's session
func (s *Service) StartCandidate(ctx context.Context, token, email string) (*models.CandidateStartResponse, error) {
	token = strings.TrimSpace(token)
	email = strings.TrimSpace(email)

	v := validator{}
	v.check(token != "", "token", "interview token is required")
	v.check(email != "", "email", "candidate email is required")
	if err := v.err(); err != nil {
		return nil, err
	}

	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.IsUsed {
		return nil, ErrInvitationInvalid
	}

	ci, err := s.repo.GetCompanyInterview(ctx, inv.InterviewID)
	if err != nil {
		return nil, err
	}
	if ci == nil || !ci.IsActive {
		return nil, ErrInvitationInvalid
	}

	if !strings.EqualFold(inv.CandidateEmail, email) {
		return nil, ErrEmailMismatch
	}
	if len(ci.Questions) == 0 {
		return nil, ErrNoQuestionsConfigured
	}

	session := &models.CandidateSession{
		ID:             newID(),
		InterviewID:    ci.ID,
		CandidateEmail: inv.CandidateEmail,
		StartedAt:      s.now().UTC(),
	}
	for _, q := range ci.Questions {
		session.Responses = append(session.Responses, &models.Response{
			ID:               newID(),
			SessionID:        session.ID,
			QuestionID:       q.ID,
			Order:            q.Order,
			QuestionText:     q.Text,
			QuestionAudioURL: q.AudioURL,
			Difficulty:       q.Difficulty,
		})
	}

	if err := s.repo.StartCandidateSession(ctx, inv.ID, session); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrInvitationInvalid
		}
		return nil, fmt.Errorf("failed to start candidate session: %w", err)
	}

	first := session.Responses[0]
	if first.QuestionAudioURL == "" {
		first.QuestionAudioURL = s.synthesize(ctx, s.interviewTarget(first.QuestionID, first.QuestionText))
	}

	var logoURL string
	if company, err := s.repo.GetUserByID(ctx, ci.CompanyID); err != nil {
		s.logger.Warn("failed to load company for logo", "company_id", ci.CompanyID, "error", err)
	} else if company != nil {
		logoURL = company.LogoURL
	}

	s.logger.Info("candidate session started",
		"session_id", session.ID,
		"interview_id", ci.ID,
		"invitation_id", inv.ID,
	)

	return &models.CandidateStartResponse{
		SessionID:      session.ID,
		CompanyLogoURL: logoURL,
		Question:       View(first, len(session.Responses), session.ID),
	}, nil
}

// candidateSession loads a session after checking that email owns its invitation
func (s *Service) candidateSession(ctx context.Context, sessionID, email string) (*models.CandidateSession, error) {
	session, err := s.repo.GetCandidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	inv, err := s.repo.GetInvitationBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if inv == nil || !strings.EqualFold(inv.CandidateEmail, strings.TrimSpace(email)) {
		return nil, ErrCandidateAccessDenied
	}

	return session, nil
}

// SubmitCandidate records the answer to the next question of a candidate session
func (s *Service) SubmitCandidate(ctx context.Context, sessionID, email string, order int, audio Upload) (*models.SubmitResult, error) {
	session, err := s.candidateSession(ctx, sessionID, email)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, models.KindCandidate, session.ID, session.Responses, order, audio)
}

// NextCandidate returns the next unanswered question of a candidate session
func (s *Service) NextCandidate(ctx context.Context, sessionID, email string) (*models.QuestionView, error) {
	session, err := s.candidateSession(ctx, sessionID, email)
	if err != nil {
		return nil, err
	}

	next := NextUnanswered(session.Responses)
	if next == nil {
		return nil, ErrNoMoreQuestions
	}
	if next.QuestionAudioURL == "" {
		next.QuestionAudioURL = s.synthesize(ctx, s.interviewTarget(next.QuestionID, next.QuestionText))
	}

	return View(next, len(session.Responses), session.ID), nil
}
