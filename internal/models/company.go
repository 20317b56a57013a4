package models

import "time"

// CompanyInterview is a screening interview authored by a company
type CompanyInterview struct {
	ID          string                 `json:"id"`
	CompanyID   string                 `json:"companyId"`
	Title       string                 `json:"title"`
	IsActive    bool                   `json:"isActive"`
	CreatedAt   time.Time              `json:"createdAt"`
	Questions   []*InterviewQuestion   `json:"questions,omitempty"`
	Invitations []*CandidateInvitation `json:"invitedCandidates,omitempty"`
}

// InterviewQuestion is a question selected into a company interview
type InterviewQuestion struct {
	ID          string     `json:"id"`
	InterviewID string     `json:"interviewId"`
	Text        string     `json:"text"`
	IdealAnswer string     `json:"idealAnswer"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
	Order       int        `json:"order"`
}

// CandidateInvitation grants one external candidate a single use of an interview
type CandidateInvitation struct {
	ID             string    `json:"id"`
	InterviewID    string    `json:"interviewId"`
	CandidateEmail string    `json:"email"`
	Token          string    `json:"token"`
	IsUsed         bool      `json:"isUsed"`
	CreatedAt      time.Time `json:"createdAt"`
	SessionID      string    `json:"sessionId,omitempty"`
}

// SavedCandidate is a company's bookmark of a promising candidate session
type SavedCandidate struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"companyId"`
	SessionID      string    `json:"sessionId"`
	CandidateEmail string    `json:"candidateEmail"`
	InterviewID    string    `json:"interviewId"`
	InterviewTitle string    `json:"interviewTitle"`
	AverageScore   *float64  `json:"averageScore"`
	SavedAt        time.Time `json:"savedAt"`
}

// CompanyQuestionInput is a question proposed by the company at creation time
type CompanyQuestionInput struct {
	Text        string     `json:"text"`
	IdealAnswer string     `json:"idealAnswer"`
	Difficulty  Difficulty `json:"difficulty"`
}

// CreateInterviewRequest creates a company interview and invites candidates
type CreateInterviewRequest struct {
	Title            string                 `json:"title"`
	Questions        []CompanyQuestionInput `json:"questions"`
	QuestionsPerTier TierCounts             `json:"questionsPerTier"`
	CandidateEmails  []string               `json:"candidateEmails"`
}

// InvitationLink pairs an email with its personal join link
type InvitationLink struct {
	CandidateEmail string `json:"candidateEmail"`
	UniqueLink     string `json:"uniqueLink"`
}

// CreateInterviewResponse is returned after creating an interview
type CreateInterviewResponse struct {
	Message     string           `json:"message"`
	InterviewID string           `json:"interviewId"`
	Title       string           `json:"title"`
	Links       []InvitationLink `json:"links"`
}

// InterviewSummary is a row of the company's interview list
type InterviewSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	QuestionCount   int       `json:"questionCount"`
	SessionCount    int       `json:"sessionCount"`
	InvitationCount int       `json:"invitationCount"`
}

// CandidateResult is a row of an interview's results table
type CandidateResult struct {
	SessionID        string   `json:"sessionId"`
	CandidateEmail   string   `json:"candidateEmail"`
	IsCompleted      bool     `json:"isCompleted"`
	AverageScore     *float64 `json:"averageScore"`
	ResponseCount    int      `json:"responseCount"`
	IsSaved          bool     `json:"isSaved"`
	SavedCandidateID string   `json:"savedCandidateId,omitempty"`
}

// CandidateSessionDetail is the company's view of one candidate's answers
type CandidateSessionDetail struct {
	SessionID        string      `json:"sessionId"`
	InterviewID      string      `json:"interviewId"`
	CandidateEmail   string      `json:"candidateEmail"`
	StartedAt        time.Time   `json:"startedAt"`
	IsCompleted      bool        `json:"isCompleted"`
	AverageScore     *float64    `json:"averageScore"`
	Responses        []*Response `json:"responses"`
	IsSaved          bool        `json:"isSaved"`
	SavedCandidateID string      `json:"savedCandidateId,omitempty"`
}

// CandidateStartResponse is returned when a candidate redeems an invitation
type CandidateStartResponse struct {
	SessionID      string        `json:"sessionId"`
	CompanyLogoURL string        `json:"companyLogoUrl,omitempty"`
	Question       *QuestionView `json:"question"`
}

// SaveCandidateResponse is returned by the idempotent save operation
type SaveCandidateResponse struct {
	Message          string `json:"message"`
	SavedCandidateID string `json:"savedCandidateId"`
}
