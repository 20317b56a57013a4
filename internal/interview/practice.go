package interview

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

const (
	msgResponseSubmitted  = "Response submitted successfully."
	msgInterviewCompleted = "Interview completed. Your answers are being evaluated."
	msgEvaluationsPending = "Evaluations in progress, please check back later."
)

// ListDomains returns every domain with its question count and logo
func (s *Service) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	return s.repo.ListDomains(ctx)
}

// StartPractice draws questions from the domain bank and opens a practice session
func (s *Service) StartPractice(ctx context.Context, userID, domainID string) (*models.StartPracticeResponse, error) {
	domain, err := s.repo.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if domain == nil {
		return nil, ErrDomainNotFound
	}

	bank, err := s.repo.ListQuestions(ctx, domainID)
	if err != nil {
		return nil, err
	}

	selected, err := SelectByTier(s.selector, domain.Name, bank,
		func(q *models.Question) models.Difficulty { return q.Difficulty },
		domain.Configuration.Tiers(),
	)
	if err != nil {
		return nil, err
	}

	first := selected[0]
	if first.AudioURL == "" {
		first.AudioURL = s.synthesize(ctx, s.bankTarget(first.ID, first.Text))
	}

	session := &models.PracticeSession{
		ID:        newID(),
		UserID:    userID,
		DomainID:  domainID,
		StartedAt: s.now().UTC(),
	}
	for i, q := range selected {
		session.Responses = append(session.Responses, &models.Response{
			ID:               newID(),
			SessionID:        session.ID,
			QuestionID:       q.ID,
			Order:            i + 1,
			QuestionText:     q.Text,
			QuestionAudioURL: q.AudioURL,
			Difficulty:       q.Difficulty,
		})
	}

	if err := s.repo.CreatePracticeSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start practice session: %w", err)
	}

	var missing []audioTarget
	for _, q := range selected[1:] {
		if q.AudioURL == "" {
			missing = append(missing, s.bankTarget(q.ID, q.Text))
		}
	}
	s.synthesizeAll(missing)

	s.logger.Info("practice session started",
		"session_id", session.ID,
		"user_id", userID,
		"domain", domain.Name,
		"questions", len(selected),
	)

	total := len(session.Responses)
	return &models.StartPracticeResponse{
		SessionID:      session.ID,
		Question:       View(session.Responses[0], total, ""),
		TotalQuestions: total,
	}, nil
}

// ownPractice loads a session owned by userID
func (s *Service) ownPractice(ctx context.Context, userID, sessionID string) (*models.PracticeSession, error) {
	session, err := s.repo.GetPracticeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// SubmitPractice records the answer to the next question of a practice session
func (s *Service) SubmitPractice(ctx context.Context, userID, sessionID string, order int, audio Upload) (*models.SubmitResult, error) {
	session, err := s.ownPractice(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, models.KindPractice, session.ID, session.Responses, order, audio)
}

// submit is the answer flow shared by practice and candidate sessions
func (s *Service) submit(ctx context.Context, kind models.SessionKind, sessionID string, responses []*models.Response, order int, audio Upload) (*models.SubmitResult, error) {
	resp, err := CheckSubmission(responses, order)
	if err != nil {
		return nil, err
	}

	url, err := s.media.SaveAudio(audio.Reader, audio.Filename, audio.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store answer audio: %w", err)
	}

	completed, err := s.repo.RecordAnswer(ctx, kind, sessionID, resp.ID, url)
	if err != nil {
		s.removeMedia([]string{url})
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent submission answered this slot first
			return nil, ErrQuestionOrderMismatch
		}
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(models.PendingEvaluation{
			Kind:       kind,
			ResponseID: resp.ID,
			SessionID:  sessionID,
		})
	}

	s.logger.Info("answer submitted",
		"kind", kind,
		"session_id", sessionID,
		"order", order,
		"completed", completed,
	)

	if completed {
		return &models.SubmitResult{Message: msgInterviewCompleted, IsCompleted: true}, nil
	}

	next := order + 1
	return &models.SubmitResult{Message: msgResponseSubmitted, NextOrder: &next}, nil
}

// NextPractice returns the next unanswered question of a practice session
func (s *Service) NextPractice(ctx context.Context, userID, sessionID string) (*models.QuestionView, error) {
	session, err := s.ownPractice(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	next := NextUnanswered(session.Responses)
	if next == nil {
		return nil, ErrNoMoreQuestions
	}
	if next.QuestionAudioURL == "" {
		next.QuestionAudioURL = s.synthesize(ctx, s.bankTarget(next.QuestionID, next.QuestionText))
	}

	return View(next, len(session.Responses), ""), nil
}

// ListPractice returns the user's sessions, newest first
func (s *Service) ListPractice(ctx context.Context, userID string) ([]*models.PracticeSummary, error) {
	return s.repo.ListPracticeSessions(ctx, userID)
}

// PracticeResults summarises the evaluated answers of a session and retries pending evaluations
func (s *Service) PracticeResults(ctx context.Context, userID, sessionID string) (*models.PracticeResults, error) {
	session, err := s.ownPractice(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	pending := s.retryPending(models.KindPractice, session.Responses)

	total := PracticeScore(session.Responses)
	if total == nil {
		return &models.PracticeResults{
			SessionID:          session.ID,
			Message:            msgEvaluationsPending,
			PendingEvaluations: pending,
		}, nil
	}

	breakdown := make([]models.ResultItem, 0, len(session.Responses))
	for _, r := range session.Responses {
		if !r.Evaluated() {
			continue
		}
		breakdown = append(breakdown, models.ResultItem{
			Order:         r.Order,
			QuestionText:  r.QuestionText,
			Score:         r.Score,
			Feedback:      r.Feedback,
			Transcription: r.Transcription,
		})
	}

	return &models.PracticeResults{
		SessionID:          session.ID,
		TotalScore:         total,
		Breakdown:          breakdown,
		PendingEvaluations: pending,
	}, nil
}

// DeletePractice removes a session, its responses and the stored recordings
func (s *Service) DeletePractice(ctx context.Context, userID, sessionID string) error {
	session, err := s.ownPractice(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePracticeSession(ctx, session.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	s.removeMedia(answerURLs(session.Responses))
	s.logger.Info("practice session deleted", "session_id", session.ID, "user_id", userID)
	return nil
}

// AuthorizeSessionEvents checks that userID may subscribe to the session's events
func (s *Service) AuthorizeSessionEvents(ctx context.Context, userID, sessionID string) error {
	_, err := s.ownPractice(ctx, userID, sessionID)
	return err
}

func answerURLs(responses []*models.Response) []string {
	urls := make([]string, 0, len(responses))
	for _, r := range responses {
		if r.AudioURL != "" {
			urls = append(urls, r.AudioURL)
		}
	}
	return urls
}
