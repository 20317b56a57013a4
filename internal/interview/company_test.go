package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/interview-engine/internal/models"
)

func screeningRequest() models.CreateInterviewRequest {
	return models.CreateInterviewRequest{
		Title: "Backend Engineer",
		Questions: []models.CompanyQuestionInput{
			{Text: "Explain goroutines.", IdealAnswer: "Lightweight threads.", Difficulty: "e"},
			{Text: "What is a channel?", IdealAnswer: "A typed conduit.", Difficulty: models.DifficultyE},
			{Text: "Design a rate limiter.", IdealAnswer: "Token bucket.", Difficulty: models.DifficultyC},
		},
		QuestionsPerTier: models.TierCounts{models.DifficultyE: 1, models.DifficultyC: 1},
		CandidateEmails:  []string{"Alice@Example.com", " alice@example.com ", "bob@example.com"},
	}
}

func createScreening(t *testing.T, env *testEnv, company *models.User) *models.CreateInterviewResponse {
	t.Helper()
	resp, err := env.svc.CreateInterview(context.Background(), company, screeningRequest())
	require.NoError(t, err)
	return resp
}

func tokenOf(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

func TestCreateInterview(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	ctx := context.Background()
	company := env.seedCompany(t, "Acme")

	resp := createScreening(t, env, company)
	assert.Equal(t, "Interview created successfully.", resp.Message)
	assert.Equal(t, "Backend Engineer", resp.Title)

	require.Len(t, resp.Links, 2, "emails are de-duplicated case-insensitively")
	assert.Equal(t, "Alice@Example.com", resp.Links[0].CandidateEmail)
	assert.Equal(t, "bob@example.com", resp.Links[1].CandidateEmail)
	for _, link := range resp.Links {
		assert.True(t, strings.HasPrefix(link.UniqueLink, "https://interviews.example.com/api/candidate-interview/start/"), link.UniqueLink)
		assert.Len(t, tokenOf(link.UniqueLink), 48)
	}
	assert.NotEqual(t, resp.Links[0].UniqueLink, resp.Links[1].UniqueLink)

	env.settle()

	ci, err := env.svc.GetInterview(ctx, company.ID, resp.InterviewID)
	require.NoError(t, err)
	require.Len(t, ci.Questions, 2)
	assert.Equal(t, 1, ci.Questions[0].Order)
	assert.Equal(t, models.DifficultyE, ci.Questions[0].Difficulty)
	assert.Equal(t, 2, ci.Questions[1].Order)
	assert.Equal(t, "Design a rate limiter.", ci.Questions[1].Text)
	for _, q := range ci.Questions {
		assert.NotEmpty(t, q.AudioURL, "question audio synthesized in the background")
	}

	sent := env.mailer.invitations()
	require.Len(t, sent, 2)
	for _, inv := range sent {
		assert.Equal(t, "Acme", inv.CompanyName)
		assert.Equal(t, "Backend Engineer", inv.InterviewTitle)
	}

	list, err := env.svc.ListInterviews(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].QuestionCount)
	assert.Equal(t, 2, list[0].InvitationCount)
	assert.True(t, list[0].IsActive)
}

func TestCreateInterviewValidation(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	company := env.seedCompany(t, "Acme")

	tests := []struct {
		name   string
		mutate func(r *models.CreateInterviewRequest)
		field  string
	}{
		{"missing title", func(r *models.CreateInterviewRequest) { r.Title = "  " }, "title"},
		{"no questions", func(r *models.CreateInterviewRequest) { r.Questions = nil }, "questions"},
		{"bad difficulty", func(r *models.CreateInterviewRequest) { r.Questions[0].Difficulty = "F" }, "questions[0].difficulty"},
		{"empty text", func(r *models.CreateInterviewRequest) { r.Questions[2].Text = "" }, "questions[2].text"},
		{"bad email", func(r *models.CreateInterviewRequest) { r.CandidateEmails = []string{"not-an-email"} }, "candidateEmails[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := screeningRequest()
			tt.mutate(&req)

			_, err := env.svc.CreateInterview(context.Background(), company, req)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCreateInterviewInsufficientQuestions(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	company := env.seedCompany(t, "Acme")

	req := screeningRequest()
	req.QuestionsPerTier = models.TierCounts{models.DifficultyE: 3}

	_, err := env.svc.CreateInterview(context.Background(), company, req)
	var insufficient *InsufficientQuestionsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "not enough questions for Backend Engineer/E: found 2, required 3", err.Error())
}

func TestInviteCandidates(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	ctx := context.Background()
	acme := env.seedCompany(t, "Acme")
	other := env.seedCompany(t, "Globex")
	resp := createScreening(t, env, acme)

	_, err := env.svc.InviteCandidates(ctx, acme, resp.InterviewID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.InviteCandidates(ctx, acme, resp.InterviewID, []string{"BOB@example.com"})
	assert.ErrorIs(t, err, ErrCandidateAlreadyInvited)

	_, err = env.svc.InviteCandidates(ctx, other, resp.InterviewID, []string{"carol@example.com"})
	assert.ErrorIs(t, err, ErrInterviewNotFound)

	links, err := env.svc.InviteCandidates(ctx, acme, resp.InterviewID, []string{"carol@example.com"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "carol@example.com", links[0].CandidateEmail)

	env.settle()
	assert.Len(t, env.mailer.invitations(), 3)

	require.NoError(t, env.svc.FinishInterview(ctx, acme.ID, resp.InterviewID))
	_, err = env.svc.InviteCandidates(ctx, acme, resp.InterviewID, []string{"dave@example.com"})
	assert.ErrorIs(t, err, ErrInterviewFinished)
}

func TestFinishInterview(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	ctx := context.Background()
	acme := env.seedCompany(t, "Acme")
	resp := createScreening(t, env, acme)

	assert.ErrorIs(t, env.svc.FinishInterview(ctx, "someone-else", resp.InterviewID), ErrInterviewNotFound)
	require.NoError(t, env.svc.FinishInterview(ctx, acme.ID, resp.InterviewID))
	assert.ErrorIs(t, env.svc.FinishInterview(ctx, acme.ID, resp.InterviewID), ErrInterviewFinished)

	// Links of a finished interview no longer work
	_, err := env.svc.StartCandidate(ctx, tokenOf(resp.Links[1].UniqueLink), "bob@example.com")
	assert.ErrorIs(t, err, ErrInvitationInvalid)
}

func TestInterviewResultsAndSavedCandidates(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	ctx := context.Background()
	acme := env.seedCompany(t, "Acme")
	resp := createScreening(t, env, acme)

	started, err := env.svc.StartCandidate(ctx, tokenOf(resp.Links[1].UniqueLink), "bob@example.com")
	require.NoError(t, err)
	for order := 1; order <= 2; order++ {
		_, err := env.svc.SubmitCandidate(ctx, started.SessionID, "bob@example.com", order, answer("a.webm"))
		require.NoError(t, err)
	}
	env.settle()

	results, err := env.svc.InterviewResults(ctx, acme.ID, resp.InterviewID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob@example.com", results[0].CandidateEmail)
	assert.True(t, results[0].IsCompleted)
	require.NotNil(t, results[0].AverageScore)
	assert.InDelta(t, 80.0, *results[0].AverageScore, 1e-9)
	assert.Equal(t, 2, results[0].ResponseCount)
	assert.False(t, results[0].IsSaved)

	saved, err := env.svc.SaveCandidate(ctx, acme.ID, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Candidate saved successfully.", saved.Message)

	again, err := env.svc.SaveCandidate(ctx, acme.ID, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Candidate already saved.", again.Message)
	assert.Equal(t, saved.SavedCandidateID, again.SavedCandidateID)

	_, err = env.svc.SaveCandidate(ctx, "someone-else", started.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	results, err = env.svc.InterviewResults(ctx, acme.ID, resp.InterviewID)
	require.NoError(t, err)
	assert.True(t, results[0].IsSaved)
	assert.Equal(t, saved.SavedCandidateID, results[0].SavedCandidateID)

	detail, err := env.svc.GetCandidateSession(ctx, acme.ID, started.SessionID)
	require.NoError(t, err)
	assert.True(t, detail.IsSaved)
	require.Len(t, detail.Responses, 2)
	assert.Equal(t, "Solid answer.", detail.Responses[0].Feedback)

	list, err := env.svc.ListSavedCandidates(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Backend Engineer", list[0].InterviewTitle)
	require.NotNil(t, list[0].AverageScore)

	require.NoError(t, env.svc.DeleteSavedCandidate(ctx, acme.ID, saved.SavedCandidateID))
	assert.ErrorIs(t, env.svc.DeleteSavedCandidate(ctx, acme.ID, saved.SavedCandidateID), ErrSavedCandidateNotFound)
}

func TestDeleteInterview(t *testing.T) {
	env := newTestEnv(t, DispatcherConfig{})
	ctx := context.Background()
	acme := env.seedCompany(t, "Acme")
	resp := createScreening(t, env, acme)

	started, err := env.svc.StartCandidate(ctx, tokenOf(resp.Links[0].UniqueLink), "alice@example.com")
	require.NoError(t, err)
	_, err = env.svc.SubmitCandidate(ctx, started.SessionID, "alice@example.com", 1, answer("a.webm"))
	require.NoError(t, err)
	env.settle()

	assert.ErrorIs(t, env.svc.DeleteInterview(ctx, "someone-else", resp.InterviewID), ErrInterviewNotFound)
	require.NoError(t, env.svc.DeleteInterview(ctx, acme.ID, resp.InterviewID))

	assert.Len(t, env.media.deletedURLs(), 1)
	_, err = env.svc.GetInterview(ctx, acme.ID, resp.InterviewID)
	assert.ErrorIs(t, err, ErrInterviewNotFound)

	session, err := env.repo.GetCandidateSession(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Nil(t, session)
}
