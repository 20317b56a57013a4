package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/services"
)

// seedPracticeDomain creates a domain drawing one E and one D question
func (a *testAPI) seedPracticeDomain(t *testing.T) *models.Domain {
	t.Helper()
	ctx := context.Background()

	d, err := a.interviews.CreateDomain(ctx, models.DomainRequest{Name: "Go"}, nil)
	require.NoError(t, err)
	_, err = a.interviews.PutConfiguration(ctx, d.ID, models.DomainConfiguration{QuestionsPerE: 1, QuestionsPerD: 1})
	require.NoError(t, err)
	for _, q := range []models.QuestionRequest{
		{DomainID: d.ID, Text: "What is a goroutine?", IdealAnswer: "A lightweight thread.", Difficulty: models.DifficultyE},
		{DomainID: d.ID, Text: "How does select work?", IdealAnswer: "It waits on channels.", Difficulty: models.DifficultyD},
	} {
		_, err := a.interviews.CreateQuestion(ctx, q)
		require.NoError(t, err)
	}
	a.settle()
	return d
}

func TestHealthAndReady(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})

	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	env := decodeEnvelope(t, rec, &health)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", health["status"])

	rec = a.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	a.repo.Fail("Ping", errors.New("connection refused"))
	rec = a.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", errorCode(t, rec))
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})

	register := models.RegisterRequest{
		Email: "ann@example.com", Password: "secret1", UserType: models.UserRegular, FirstName: "Ann", LastName: "Lee",
	}
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ann@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ann@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ann@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login models.AuthResponse
	decodeEnvelope(t, rec, &login)
	assert.Equal(t, []string{"regular"}, login.Roles)
	require.NotEmpty(t, login.Token)

	rec = a.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decodeEnvelope(t, rec, &me)
	assert.Equal(t, "Ann", me.FirstName)

	rec = a.do(t, http.MethodPost, "/api/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))
}

func TestRegisterCompanyWithLogo(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})

	rec := a.doMultipart(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":       "hr@acme.com",
		"password":    "secret1",
		"userType":    "Company",
		"companyName": "Acme",
	}, multipartFile{field: "logoFile", filename: "acme.png", contentType: "image/png", content: []byte("png-bytes")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var u models.User
	decodeEnvelope(t, rec, &u)
	assert.Equal(t, models.UserCompany, u.Type)
	require.True(t, strings.HasPrefix(u.LogoURL, "http://localhost:8080/uploads/logos/"), u.LogoURL)

	// Stored logos are served publicly
	rec = a.do(t, http.MethodGet, strings.TrimPrefix(u.LogoURL, "http://localhost:8080"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestRoleEnforcement(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	regular := a.regularToken(t)
	admin := a.adminToken(t)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/api/admin/dashboard/stats", "", http.StatusUnauthorized},
		{"unknown token", "/api/admin/dashboard/stats", "not-a-token", http.StatusUnauthorized},
		{"regular on admin", "/api/admin/dashboard/stats", regular, http.StatusForbidden},
		{"admin on practice", "/api/interview/domains", admin, http.StatusForbidden},
		{"regular on company", "/api/company-interview/list", regular, http.StatusForbidden},
		{"admin on admin", "/api/admin/dashboard/stats", admin, http.StatusOK},
		{"regular on practice", "/api/interview/domains", regular, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	// Tokens are also accepted from X-API-Key and the access_token query parameter
	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard/stats", nil)
	req.Header.Set("X-API-Key", admin)
	rec := a.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/dashboard/stats?access_token="+admin, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDomainAndQuestions(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	admin := a.adminToken(t)

	rec := a.doMultipart(t, http.MethodPost, "/api/admin/domains/create", admin, map[string]string{"name": "React"},
		multipartFile{field: "logo", filename: "react.png", contentType: "image/png", content: []byte("react-logo")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d models.Domain
	decodeEnvelope(t, rec, &d)
	assert.NotEmpty(t, d.LogoURL)

	rec = a.do(t, http.MethodPost, "/api/admin/domains/create", admin, models.DomainRequest{Name: "react"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/admin/domains/"+d.ID, admin, models.DomainRequest{ID: "other", Name: "React 19"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id_mismatch", errorCode(t, rec))

	rec = a.do(t, http.MethodPut, "/api/admin/domains/"+d.ID+"/configuration", admin,
		models.DomainConfiguration{QuestionsPerE: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/admin/domains/questions/create", admin, models.QuestionRequest{
		DomainID: d.ID, Text: "What is JSX?", IdealAnswer: "Syntax sugar.", Difficulty: "Q",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/admin/domains/questions/create", admin, models.QuestionRequest{
		DomainID: d.ID, Text: "What is JSX?", IdealAnswer: "Syntax sugar.", Difficulty: "E",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q models.Question
	decodeEnvelope(t, rec, &q)

	rec = a.do(t, http.MethodPatch, "/api/admin/domains/questions/"+q.ID+"/difficulty?difficulty=b", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeEnvelope(t, rec, &q)
	assert.Equal(t, models.DifficultyB, q.Difficulty)

	rec = a.do(t, http.MethodPatch, "/api/admin/domains/questions/"+q.ID+"/difficulty", admin,
		models.DifficultyRequest{Difficulty: "C"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/admin/domains/"+d.ID+"/questions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Questions []models.Question `json:"questions"`
		Total     int               `json:"total"`
	}
	decodeEnvelope(t, rec, &list)
	assert.Equal(t, 1, list.Total)

	rec = a.do(t, http.MethodDelete, "/api/admin/domains/questions/"+q.ID+"/delete", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/admin/domains/questions/"+q.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = a.do(t, http.MethodGet, "/api/admin/dashboard/activity/recent?limit=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		Activity []models.ActivityLog `json:"activity"`
		Total    int                  `json:"total"`
	}
	decodeEnvelope(t, rec, &activity)
	assert.Equal(t, 2, activity.Total)

	rec = a.do(t, http.MethodDelete, "/api/admin/domains/"+d.ID+"/delete", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/admin/domains/"+d.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsersAndStatus(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	admin := a.adminToken(t)
	a.companyToken(t)

	rec := a.do(t, http.MethodGet, "/api/admin/users/companies", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var companies struct {
		Companies []models.User `json:"companies"`
		Total     int           `json:"total"`
	}
	decodeEnvelope(t, rec, &companies)
	require.Equal(t, 1, companies.Total)

	rec = a.do(t, http.MethodPost, "/api/admin/users/admins", admin,
		models.CreateAdminRequest{Email: "ops@example.com", Password: "opspass", Department: "Ops"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ops models.User
	decodeEnvelope(t, rec, &ops)

	rec = a.do(t, http.MethodDelete, "/api/admin/users/admins/"+ops.ID, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	me, err := a.accounts.Login(context.Background(), "root@example.com", "rootpass")
	require.NoError(t, err)
	rec = a.do(t, http.MethodDelete, "/api/admin/users/admins/"+me.UserID, admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/admin/users/companies/"+companies.Companies[0].ID, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/dashboard/status", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.SystemStatus
	decodeEnvelope(t, rec, &status)
	assert.Equal(t, services.StatusOK, status.Status)
}

func TestPracticeFlow(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	d := a.seedPracticeDomain(t)
	user := a.regularToken(t)

	rec := a.do(t, http.MethodGet, "/api/interview/domains", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var domains struct {
		Domains []models.Domain `json:"domains"`
		Total   int             `json:"total"`
	}
	decodeEnvelope(t, rec, &domains)
	assert.Equal(t, 1, domains.Total)

	rec = a.do(t, http.MethodPost, "/api/interview/start", user, startPracticeRequest{DomainID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/interview/start", user, startPracticeRequest{DomainID: d.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var start models.StartPracticeResponse
	decodeEnvelope(t, rec, &start)
	assert.Equal(t, 2, start.TotalQuestions)
	assert.Equal(t, 1, start.Question.Order)
	assert.Equal(t, models.DifficultyE, start.Question.Difficulty)

	// Answers must follow question order
	rec = a.doMultipart(t, http.MethodPost, "/api/interview/submit-response", user,
		map[string]string{"sessionId": start.SessionID, "questionOrder": "2"}, audioFile())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "question_order_mismatch", errorCode(t, rec))

	rec = a.doMultipart(t, http.MethodPost, "/api/interview/submit-response", user,
		map[string]string{"sessionId": start.SessionID, "questionOrder": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = a.doMultipart(t, http.MethodPost, "/api/interview/submit-response", user,
		map[string]string{"sessionId": start.SessionID, "questionOrder": "1"}, audioFile())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submit models.SubmitResult
	decodeEnvelope(t, rec, &submit)
	assert.False(t, submit.IsCompleted)
	require.NotNil(t, submit.NextOrder)
	assert.Equal(t, 2, *submit.NextOrder)

	rec = a.do(t, http.MethodPost, "/api/interview/next-question", user, sessionRequest{SessionID: start.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	var next models.QuestionView
	decodeEnvelope(t, rec, &next)
	assert.Equal(t, 2, next.Order)
	assert.True(t, next.IsLast)

	rec = a.doMultipart(t, http.MethodPost, "/api/interview/submit-response", user,
		map[string]string{"sessionId": start.SessionID, "questionOrder": "2"}, audioFile())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeEnvelope(t, rec, &submit)
	assert.True(t, submit.IsCompleted)

	rec = a.do(t, http.MethodPost, "/api/interview/next-question", user, sessionRequest{SessionID: start.SessionID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_more_questions", errorCode(t, rec))

	a.settle()

	rec = a.do(t, http.MethodGet, "/api/interview/results/"+start.SessionID, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results models.PracticeResults
	decodeEnvelope(t, rec, &results)
	require.NotNil(t, results.TotalScore)
	assert.InDelta(t, 90.0, *results.TotalScore, 0.001)
	assert.Len(t, results.Breakdown, 2)
	assert.Zero(t, results.PendingEvaluations)

	rec = a.do(t, http.MethodGet, "/api/interview/sessions", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions struct {
		Sessions []models.PracticeSummary `json:"sessions"`
		Total    int                      `json:"total"`
	}
	decodeEnvelope(t, rec, &sessions)
	require.Equal(t, 1, sessions.Total)
	assert.True(t, sessions.Sessions[0].IsCompleted)

	// Other users cannot see the session
	other := a.register(t, models.RegisterRequest{
		Email: "bob@example.com", UserType: models.UserRegular, FirstName: "Bob", LastName: "Ray",
	})
	rec = a.do(t, http.MethodGet, "/api/interview/results/"+start.SessionID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/interview/sessions/"+start.SessionID, user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/interview/results/"+start.SessionID, user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartPracticeInsufficientQuestions(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	ctx := context.Background()
	user := a.regularToken(t)

	d, err := a.interviews.CreateDomain(ctx, models.DomainRequest{Name: "Rust"}, nil)
	require.NoError(t, err)
	_, err = a.interviews.PutConfiguration(ctx, d.ID, models.DomainConfiguration{QuestionsPerA: 3})
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/interview/start", user, startPracticeRequest{DomainID: d.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "insufficient_questions", errorCode(t, rec))
}

func TestCompanyAndCandidateFlow(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	company := a.companyToken(t)

	// Field errors are reported per field
	rec := a.do(t, http.MethodPost, "/api/company-interview/create", company, models.CreateInterviewRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "title")
	assert.Contains(t, env.Error.Fields, "questions")

	rec = a.do(t, http.MethodPost, "/api/company-interview/create", company, models.CreateInterviewRequest{
		Title: "Backend screening",
		Questions: []models.CompanyQuestionInput{
			{Text: "Explain indexes.", IdealAnswer: "B-trees.", Difficulty: "E"},
			{Text: "Explain MVCC.", IdealAnswer: "Row versions.", Difficulty: "C"},
		},
		QuestionsPerTier: models.TierCounts{models.DifficultyE: 1},
		CandidateEmails:  []string{"cand@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.CreateInterviewResponse
	decodeEnvelope(t, rec, &created)
	require.Len(t, created.Links, 1)
	assert.True(t, strings.HasPrefix(created.Links[0].UniqueLink, "https://interviews.example.com/api/candidate-interview/start/"))
	token := path.Base(created.Links[0].UniqueLink)

	rec = a.do(t, http.MethodPost, "/api/candidate-interview/start/"+token, "", startCandidateRequest{CandidateEmail: "other@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email_mismatch", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/candidate-interview/start/"+token, "", startCandidateRequest{CandidateEmail: "Cand@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var start models.CandidateStartResponse
	decodeEnvelope(t, rec, &start)
	assert.Equal(t, 1, start.Question.TotalQuestions)
	assert.Equal(t, "Explain indexes.", start.Question.Text)

	rec = a.do(t, http.MethodPost, "/api/candidate-interview/start/"+token, "", startCandidateRequest{CandidateEmail: "cand@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invitation_invalid", errorCode(t, rec))

	// The email may come from the header
	req := httptest.NewRequest(http.MethodPost, "/api/candidate-interview/next-question",
		strings.NewReader(`{"sessionId":"`+start.SessionID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Candidate-Email", "intruder@example.com")
	rec = a.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doMultipart(t, http.MethodPost, "/api/candidate-interview/submit-response", "", map[string]string{
		"sessionId":      start.SessionID,
		"questionOrder":  "1",
		"candidateEmail": "cand@example.com",
	}, audioFile())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submit models.SubmitResult
	decodeEnvelope(t, rec, &submit)
	assert.True(t, submit.IsCompleted)

	a.settle()

	rec = a.do(t, http.MethodGet, "/api/company-interview/results/"+created.InterviewID, company, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Results []models.CandidateResult `json:"results"`
		Total   int                      `json:"total"`
	}
	decodeEnvelope(t, rec, &results)
	require.Equal(t, 1, results.Total)
	require.NotNil(t, results.Results[0].AverageScore)
	assert.InDelta(t, 90.0, *results.Results[0].AverageScore, 0.001)
	assert.True(t, results.Results[0].IsCompleted)

	rec = a.do(t, http.MethodGet, "/api/company-interview/session/"+start.SessionID, company, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.CandidateSessionDetail
	decodeEnvelope(t, rec, &detail)
	require.Len(t, detail.Responses, 1)
	assert.Equal(t, "transcribed answer", detail.Responses[0].Transcription)

	rec = a.do(t, http.MethodPost, "/api/company-interview/session/"+start.SessionID+"/save", company, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.SaveCandidateResponse
	decodeEnvelope(t, rec, &saved)
	require.NotEmpty(t, saved.SavedCandidateID)

	rec = a.do(t, http.MethodGet, "/api/company-interview/saved", company, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var savedList struct {
		SavedCandidates []models.SavedCandidate `json:"savedCandidates"`
		Total           int                     `json:"total"`
	}
	decodeEnvelope(t, rec, &savedList)
	assert.Equal(t, 1, savedList.Total)

	rec = a.do(t, http.MethodDelete, "/api/company-interview/saved/"+saved.SavedCandidateID, company, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/company-interview/"+created.InterviewID+"/finish", company, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/company-interview/"+created.InterviewID+"/invite", company,
		inviteRequest{CandidateEmails: []string{"late@example.com"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/company-interview/list", company, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Interviews []models.InterviewSummary `json:"interviews"`
		Total      int                       `json:"total"`
	}
	decodeEnvelope(t, rec, &list)
	require.Equal(t, 1, list.Total)
	assert.False(t, list.Interviews[0].IsActive)

	rec = a.do(t, http.MethodDelete, "/api/company-interview/"+created.InterviewID, company, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/company-interview/"+created.InterviewID, company, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{MaxUploadBytes: 1024})
	d := a.seedPracticeDomain(t)
	user := a.regularToken(t)

	rec := a.do(t, http.MethodPost, "/api/interview/start", user, startPracticeRequest{DomainID: d.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var start models.StartPracticeResponse
	decodeEnvelope(t, rec, &start)

	big := audioFile()
	big.content = make([]byte, 64<<10)
	rec = a.doMultipart(t, http.MethodPost, "/api/interview/submit-response", user,
		map[string]string{"sessionId": start.SessionID, "questionOrder": "1"}, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file_too_large", errorCode(t, rec))
}

func TestUnexpectedStoreError(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{})
	user := a.regularToken(t)

	a.repo.Fail("ListDomains", errors.New("connection reset"))
	rec := a.do(t, http.MethodGet, "/api/interview/domains", user, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	env := decodeEnvelope(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.Equal(t, "failed to list domains", env.Error.Message)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		query  string
		want   string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "", "abc"},
		{"lowercase bearer", map[string]string{"Authorization": "bearer abc"}, "", "abc"},
		{"raw authorization", map[string]string{"Authorization": "abc"}, "", "abc"},
		{"api key", map[string]string{"X-API-Key": "abc"}, "", "abc"},
		{"query", nil, "access_token=abc", "abc"},
		{"none", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractToken(req))
		})
	}
}
