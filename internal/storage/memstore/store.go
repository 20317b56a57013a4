// Package memstore is an in-memory storage.Repository for tests and local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// Store is an in-memory storage.Repository. Reads return copies so callers
// cannot mutate stored state, like rows coming back from the database.
type Store struct {
	mu sync.Mutex

	users       map[string]*models.User
	tokens      map[string]*models.AuthToken
	domains     map[string]*models.Domain
	questions   map[string]*models.Question
	activity    []*models.ActivityLog
	practice    map[string]*models.PracticeSession
	interviews  map[string]*models.CompanyInterview
	invitations map[string]*models.CandidateInvitation
	candidates  map[string]*models.CandidateSession
	saved       map[string]*models.SavedCandidate

	// failures injected per method name
	fail map[string]error
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		tokens:      make(map[string]*models.AuthToken),
		domains:     make(map[string]*models.Domain),
		questions:   make(map[string]*models.Question),
		practice:    make(map[string]*models.PracticeSession),
		interviews:  make(map[string]*models.CompanyInterview),
		invitations: make(map[string]*models.CandidateInvitation),
		candidates:  make(map[string]*models.CandidateSession),
		saved:       make(map[string]*models.SavedCandidate),
		fail:        make(map[string]error),
	}
}

// Fail makes the named method return err until cleared with a nil err
func (m *Store) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, method)
		return
	}
	m.fail[method] = err
}

func (m *Store) injected(method string) error {
	return m.fail[method]
}

func copyResponses(in []*models.Response) []*models.Response {
	out := make([]*models.Response, 0, len(in))
	for _, r := range in {
		c := *r
		if r.Score != nil {
			score := *r.Score
			c.Score = &score
		}
		out = append(out, &c)
	}
	return out
}

// --- Users ---

func (m *Store) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, storage.ErrDuplicate)
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		if u.Type == userType {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Store) DeleteUser(ctx context.Context, id string, userType models.UserType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Type != userType {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

func (m *Store) CreateAuthToken(ctx context.Context, t *models.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.tokens[t.Token] = &c
	return nil
}

func (m *Store) GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (m *Store) TouchAuthToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		now := time.Now()
		t.LastUsedAt = &now
	}
	return nil
}

func (m *Store) DeleteAuthToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *Store) DeleteExpiredAuthTokens(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.tokens {
		if t.IsExpired() {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

// --- Domains ---

func (m *Store) domainCopy(d *models.Domain) *models.Domain {
	c := *d
	c.QuestionCount = 0
	for _, q := range m.questions {
		if q.DomainID == d.ID {
			c.QuestionCount++
		}
	}
	if d.Configuration != nil {
		cfg := *d.Configuration
		c.Configuration = &cfg
	}
	return &c
}

func (m *Store) CreateDomain(ctx context.Context, d *models.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.domains {
		if strings.EqualFold(existing.Name, d.Name) {
			return fmt.Errorf("domain %s: %w", d.Name, storage.ErrDuplicate)
		}
	}
	c := *d
	m.domains[d.ID] = &c
	return nil
}

func (m *Store) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.domains[id]; ok {
		return m.domainCopy(d), nil
	}
	return nil, nil
}

func (m *Store) GetDomainByName(ctx context.Context, name string) (*models.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.domains {
		if strings.EqualFold(d.Name, name) {
			return m.domainCopy(d), nil
		}
	}
	return nil, nil
}

func (m *Store) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("ListDomains"); err != nil {
		return nil, err
	}
	var out []*models.Domain
	for _, d := range m.domains {
		out = append(out, m.domainCopy(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) UpdateDomain(ctx context.Context, d *models.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.domains[d.ID]
	if !ok {
		return fmt.Errorf("domain %s: %w", d.ID, storage.ErrNotFound)
	}
	existing.Name = d.Name
	existing.LogoURL = d.LogoURL
	return nil
}

func (m *Store) DeleteDomain(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[id]; !ok {
		return fmt.Errorf("domain %s: %w", id, storage.ErrNotFound)
	}
	delete(m.domains, id)
	for qid, q := range m.questions {
		if q.DomainID == id {
			delete(m.questions, qid)
		}
	}
	for sid, s := range m.practice {
		if s.DomainID == id {
			delete(m.practice, sid)
		}
	}
	return nil
}

func (m *Store) UpsertDomainConfiguration(ctx context.Context, c *models.DomainConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[c.DomainID]
	if !ok {
		return fmt.Errorf("domain %s: %w", c.DomainID, storage.ErrNotFound)
	}
	now := time.Now().UTC()
	if d.Configuration == nil {
		c.CreatedAt = now
	} else {
		c.CreatedAt = d.Configuration.CreatedAt
	}
	c.UpdatedAt = now
	cfg := *c
	d.Configuration = &cfg
	return nil
}

func (m *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *q
	m.questions[q.ID] = &c
	return nil
}

func (m *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.questions[id]; ok {
		c := *q
		if d, ok := m.domains[q.DomainID]; ok {
			c.DomainName = d.Name
		}
		return &c, nil
	}
	return nil, nil
}

func (m *Store) ListQuestions(ctx context.Context, domainID string) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Question
	for _, q := range m.questions {
		if q.DomainID == domainID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Difficulty.Rank() != out[j].Difficulty.Rank() {
			return out[i].Difficulty.Rank() < out[j].Difficulty.Rank()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) UpdateQuestion(ctx context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.questions[q.ID]
	if !ok {
		return fmt.Errorf("question %s: %w", q.ID, storage.ErrNotFound)
	}
	existing.Text = q.Text
	existing.IdealAnswer = q.IdealAnswer
	existing.AudioURL = q.AudioURL
	existing.Difficulty = q.Difficulty
	return nil
}

func (m *Store) SetQuestionAudio(ctx context.Context, id, audioURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return fmt.Errorf("question %s: %w", id, storage.ErrNotFound)
	}
	q.AudioURL = audioURL
	return nil
}

func (m *Store) DeleteQuestion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return fmt.Errorf("question %s: %w", id, storage.ErrNotFound)
	}
	delete(m.questions, id)
	return nil
}

func (m *Store) LogActivity(ctx context.Context, activityType, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, &models.ActivityLog{
		ID:          int64(len(m.activity) + 1),
		Type:        activityType,
		Description: description,
		Timestamp:   time.Now().UTC(),
	})
	return nil
}

func (m *Store) ListRecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ActivityLog
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		c := *m.activity[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *Store) Stats(ctx context.Context) (*models.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.DashboardStats{
		Domains:         len(m.domains),
		Questions:       len(m.questions),
		Sessions:        len(m.practice),
		CompanySessions: len(m.candidates),
	}
	for _, u := range m.users {
		switch u.Type {
		case models.UserCompany:
			s.Companies++
		case models.UserRegular:
			s.RegularUsers++
		}
	}
	return s, nil
}

// --- Practice sessions ---

func (m *Store) CreatePracticeSession(ctx context.Context, s *models.PracticeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreatePracticeSession"); err != nil {
		return err
	}
	d, ok := m.domains[s.DomainID]
	if !ok {
		return fmt.Errorf("domain %s: %w", s.DomainID, storage.ErrNotFound)
	}
	d.SessionCount++
	c := *s
	c.Responses = copyResponses(s.Responses)
	m.practice[s.ID] = &c
	return nil
}

func (m *Store) GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.practice[id]
	if !ok {
		return nil, nil
	}
	c := *s
	c.Responses = copyResponses(s.Responses)
	return &c, nil
}

func (m *Store) ListPracticeSessions(ctx context.Context, userID string) ([]*models.PracticeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PracticeSummary
	for _, s := range m.practice {
		if s.UserID != userID {
			continue
		}
		sum := &models.PracticeSummary{
			ID:            s.ID,
			StartedAt:     s.StartedAt,
			IsCompleted:   s.IsCompleted,
			QuestionCount: len(s.Responses),
		}
		for _, r := range s.Responses {
			if r.Evaluated() {
				sum.CompletedResponsesCount++
			}
		}
		if d, ok := m.domains[s.DomainID]; ok {
			sum.DomainName = d.Name
			sum.LogoURL = d.LogoURL
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *Store) DeletePracticeSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.practice[id]; !ok {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	delete(m.practice, id)
	return nil
}

// --- Responses ---

func (m *Store) responsesOf(kind models.SessionKind, sessionID string) ([]*models.Response, *bool) {
	switch kind {
	case models.KindPractice:
		if s, ok := m.practice[sessionID]; ok {
			return s.Responses, &s.IsCompleted
		}
	case models.KindCandidate:
		if s, ok := m.candidates[sessionID]; ok {
			return s.Responses, &s.IsCompleted
		}
	}
	return nil, nil
}

func (m *Store) findResponse(kind models.SessionKind, id string) *models.Response {
	switch kind {
	case models.KindPractice:
		for _, s := range m.practice {
			for _, r := range s.Responses {
				if r.ID == id {
					return r
				}
			}
		}
	case models.KindCandidate:
		for _, s := range m.candidates {
			for _, r := range s.Responses {
				if r.ID == id {
					return r
				}
			}
		}
	}
	return nil
}

func (m *Store) GetResponse(ctx context.Context, kind models.SessionKind, id string) (*models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findResponse(kind, id)
	if r == nil {
		return nil, nil
	}
	return copyResponses([]*models.Response{r})[0], nil
}

func (m *Store) RecordAnswer(ctx context.Context, kind models.SessionKind, sessionID, responseID, audioURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	responses, completed := m.responsesOf(kind, sessionID)
	if completed == nil {
		return false, fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}

	var next *models.Response
	for _, r := range responses {
		if !r.Answered() {
			next = r
			break
		}
	}
	if next == nil || next.ID != responseID {
		return false, fmt.Errorf("response %s: %w", responseID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	next.AudioURL = audioURL
	next.AnsweredAt = &now

	done := true
	for _, r := range responses {
		if !r.Answered() {
			done = false
		}
	}
	*completed = done
	return done, nil
}

func (m *Store) SaveEvaluation(ctx context.Context, kind models.SessionKind, responseID string, ev *models.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findResponse(kind, responseID)
	if r == nil {
		return fmt.Errorf("response %s: %w", responseID, storage.ErrNotFound)
	}
	if r.Evaluated() {
		return fmt.Errorf("response %s: %w", responseID, storage.ErrConflict)
	}
	now := time.Now().UTC()
	score := ev.Score
	r.Score = &score
	r.Feedback = ev.Feedback
	r.Transcription = ev.Transcription
	r.EvaluatedAt = &now
	return nil
}

func (m *Store) RecordEvaluationFailure(ctx context.Context, kind models.SessionKind, responseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findResponse(kind, responseID)
	if r == nil {
		return 0, fmt.Errorf("response %s: %w", responseID, storage.ErrNotFound)
	}
	r.EvaluationAttempts++
	return r.EvaluationAttempts, nil
}

func (m *Store) ListPendingEvaluations(ctx context.Context, answeredBefore time.Time, maxAttempts, limit int) ([]models.PendingEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("ListPendingEvaluations"); err != nil {
		return nil, err
	}
	var out []models.PendingEvaluation
	collect := func(kind models.SessionKind, responses []*models.Response) {
		for _, r := range responses {
			if len(out) >= limit {
				return
			}
			if r.Pending() && r.EvaluationAttempts < maxAttempts && r.AnsweredAt != nil && r.AnsweredAt.Before(answeredBefore) {
				out = append(out, models.PendingEvaluation{Kind: kind, ResponseID: r.ID, SessionID: r.SessionID, Attempts: r.EvaluationAttempts})
			}
		}
	}
	for _, s := range m.practice {
		collect(models.KindPractice, s.Responses)
	}
	for _, s := range m.candidates {
		collect(models.KindCandidate, s.Responses)
	}
	return out, nil
}

// --- Company interviews ---

func (m *Store) CreateCompanyInterview(ctx context.Context, ci *models.CompanyInterview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *ci
	c.Questions = nil
	for _, q := range ci.Questions {
		qc := *q
		c.Questions = append(c.Questions, &qc)
	}
	c.Invitations = nil
	m.interviews[ci.ID] = &c
	for _, inv := range ci.Invitations {
		ic := *inv
		m.invitations[inv.ID] = &ic
	}
	return nil
}

func (m *Store) interviewCopy(ci *models.CompanyInterview) *models.CompanyInterview {
	c := *ci
	c.Questions = nil
	for _, q := range ci.Questions {
		qc := *q
		c.Questions = append(c.Questions, &qc)
	}
	c.Invitations = nil
	for _, inv := range m.invitations {
		if inv.InterviewID == ci.ID {
			ic := *inv
			c.Invitations = append(c.Invitations, &ic)
		}
	}
	sort.Slice(c.Invitations, func(i, j int) bool { return c.Invitations[i].CandidateEmail < c.Invitations[j].CandidateEmail })
	return &c
}

func (m *Store) GetCompanyInterview(ctx context.Context, id string) (*models.CompanyInterview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.interviews[id]
	if !ok {
		return nil, nil
	}
	return m.interviewCopy(ci), nil
}

func (m *Store) ListCompanyInterviews(ctx context.Context, companyID string) ([]*models.InterviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.InterviewSummary
	for _, ci := range m.interviews {
		if ci.CompanyID != companyID {
			continue
		}
		sum := &models.InterviewSummary{
			ID:            ci.ID,
			Title:         ci.Title,
			IsActive:      ci.IsActive,
			CreatedAt:     ci.CreatedAt,
			QuestionCount: len(ci.Questions),
		}
		for _, inv := range m.invitations {
			if inv.InterviewID == ci.ID {
				sum.InvitationCount++
			}
		}
		for _, s := range m.candidates {
			if s.InterviewID == ci.ID {
				sum.SessionCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) DeactivateInterview(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.interviews[id]
	if !ok {
		return fmt.Errorf("interview %s: %w", id, storage.ErrNotFound)
	}
	if !ci.IsActive {
		return fmt.Errorf("interview %s: %w", id, storage.ErrConflict)
	}
	ci.IsActive = false
	return nil
}

func (m *Store) DeleteCompanyInterview(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interviews[id]; !ok {
		return fmt.Errorf("interview %s: %w", id, storage.ErrNotFound)
	}
	delete(m.interviews, id)
	for k, inv := range m.invitations {
		if inv.InterviewID == id {
			delete(m.invitations, k)
		}
	}
	for k, s := range m.candidates {
		if s.InterviewID == id {
			delete(m.candidates, k)
		}
	}
	for k, sc := range m.saved {
		if sc.InterviewID == id {
			delete(m.saved, k)
		}
	}
	return nil
}

func (m *Store) SetInterviewQuestionAudio(ctx context.Context, id, audioURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ci := range m.interviews {
		for _, q := range ci.Questions {
			if q.ID == id {
				q.AudioURL = audioURL
				return nil
			}
		}
	}
	return fmt.Errorf("interview question %s: %w", id, storage.ErrNotFound)
}

func (m *Store) CreateInvitations(ctx context.Context, invitations []*models.CandidateInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range invitations {
		c := *inv
		m.invitations[inv.ID] = &c
	}
	return nil
}

func (m *Store) GetInvitationByToken(ctx context.Context, token string) (*models.CandidateInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Token == token {
			c := *inv
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) GetInvitationBySession(ctx context.Context, sessionID string) (*models.CandidateInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.SessionID == sessionID {
			c := *inv
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) StartCandidateSession(ctx context.Context, invitationID string, s *models.CandidateSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[invitationID]
	if !ok || inv.IsUsed {
		return fmt.Errorf("invitation %s: %w", invitationID, storage.ErrConflict)
	}
	inv.IsUsed = true
	inv.SessionID = s.ID
	c := *s
	c.Responses = copyResponses(s.Responses)
	m.candidates[s.ID] = &c
	return nil
}

func (m *Store) GetCandidateSession(ctx context.Context, id string) (*models.CandidateSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	return candidateCopy(s), nil
}

func candidateCopy(s *models.CandidateSession) *models.CandidateSession {
	c := *s
	c.Responses = copyResponses(s.Responses)
	if s.AverageScore != nil {
		avg := *s.AverageScore
		c.AverageScore = &avg
	}
	return &c
}

func (m *Store) ListCandidateSessions(ctx context.Context, interviewID string) ([]*models.CandidateSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CandidateSession
	for _, s := range m.candidates {
		if s.InterviewID == interviewID {
			out = append(out, candidateCopy(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateEmail < out[j].CandidateEmail })
	return out, nil
}

func (m *Store) SetCandidateAverage(ctx context.Context, sessionID string, average float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.candidates[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	s.AverageScore = &average
	return nil
}

func (m *Store) ListUnscoredCompletedSessions(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.candidates {
		if s.IsCompleted && s.AverageScore == nil && allScored(s.Responses) {
			out = append(out, s.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// allScored reports whether every answered response carries a score
func allScored(responses []*models.Response) bool {
	for _, r := range responses {
		if r.Answered() && r.Score == nil {
			return false
		}
	}
	return true
}

// --- Saved candidates ---

func (m *Store) CreateSavedCandidate(ctx context.Context, sc *models.SavedCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.saved {
		if existing.CompanyID == sc.CompanyID && existing.SessionID == sc.SessionID {
			return fmt.Errorf("saved candidate: %w", storage.ErrDuplicate)
		}
	}
	c := *sc
	m.saved[sc.ID] = &c
	return nil
}

func (m *Store) GetSavedCandidateBySession(ctx context.Context, companyID, sessionID string) (*models.SavedCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.saved {
		if sc.CompanyID == companyID && sc.SessionID == sessionID {
			c := *sc
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) ListSavedCandidates(ctx context.Context, companyID string) ([]*models.SavedCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SavedCandidate
	for _, sc := range m.saved {
		if sc.CompanyID == companyID {
			c := *sc
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (m *Store) DeleteSavedCandidate(ctx context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.saved[id]
	if !ok || sc.CompanyID != companyID {
		return fmt.Errorf("saved candidate %s: %w", id, storage.ErrNotFound)
	}
	delete(m.saved, id)
	return nil
}

func (m *Store) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.injected("Ping")
}

func (m *Store) Close() error { return nil }
