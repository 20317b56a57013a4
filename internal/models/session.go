package models

import (
	"time"
)

// SessionKind distinguishes practice sessions from company candidate sessions.
// Both share the same response lifecycle but live in separate tables.
type SessionKind string

const (
	KindPractice  SessionKind = "practice"
	KindCandidate SessionKind = "candidate"
)

// Response is one ordered slot of a session: the question asked and the answer given
type Response struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Order      int    `json:"order"`

	// Question fields, joined on read
	QuestionText     string     `json:"questionText"`
	IdealAnswer      string     `json:"-"`
	QuestionAudioURL string     `json:"questionAudioUrl,omitempty"`
	Difficulty       Difficulty `json:"difficulty"`

	AudioURL           string     `json:"audioUrl,omitempty"`
	Transcription      string     `json:"transcription,omitempty"`
	Feedback           string     `json:"feedback,omitempty"`
	Score              *int       `json:"score,omitempty"`
	EvaluationAttempts int        `json:"-"`
	AnsweredAt         *time.Time `json:"answeredAt,omitempty"`
	EvaluatedAt        *time.Time `json:"evaluatedAt,omitempty"`
}

// Answered returns true once the candidate uploaded audio for this slot
func (r *Response) Answered() bool {
	return r.AudioURL != ""
}

// Evaluated returns true once the AI evaluation has been stored
func (r *Response) Evaluated() bool {
	return r.EvaluatedAt != nil
}

// Pending returns true if the response is answered but still awaits evaluation
func (r *Response) Pending() bool {
	return r.Answered() && !r.Evaluated()
}

// PracticeSession is a regular user's run through a domain's questions
type PracticeSession struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	DomainID      string      `json:"domainId"`
	DomainName    string      `json:"domainName,omitempty"`
	DomainLogoURL string      `json:"logoUrl,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	IsCompleted   bool        `json:"isCompleted"`
	Responses     []*Response `json:"responses,omitempty"`
}

// CandidateSession is an invited candidate's run through a company interview
type CandidateSession struct {
	ID             string      `json:"id"`
	InterviewID    string      `json:"interviewId"`
	CandidateEmail string      `json:"candidateEmail"`
	StartedAt      time.Time   `json:"startedAt"`
	IsCompleted    bool        `json:"isCompleted"`
	AverageScore   *float64    `json:"averageScore"`
	Responses      []*Response `json:"responses,omitempty"`
}

// PendingEvaluation identifies a response whose evaluation should be (re)dispatched
type PendingEvaluation struct {
	Kind       SessionKind
	ResponseID string
	SessionID  string
	Attempts   int
}

// Evaluation is the outcome of scoring one spoken answer
type Evaluation struct {
	Score         int    `json:"score"`
	Feedback      string `json:"feedback"`
	Transcription string `json:"transcription"`
}

// QuestionView is what a candidate sees for the current question
type QuestionView struct {
	SessionID      string     `json:"sessionId,omitempty"`
	Order          int        `json:"order"`
	Text           string     `json:"text"`
	AudioURL       string     `json:"audioUrl,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	TotalQuestions int        `json:"totalQuestions"`
	IsLast         bool       `json:"isLast"`
}

// StartPracticeResponse is returned when a practice session begins
type StartPracticeResponse struct {
	SessionID      string        `json:"sessionId"`
	Question       *QuestionView `json:"question"`
	TotalQuestions int           `json:"totalQuestions"`
}

// SubmitResult is returned after an answer has been accepted
type SubmitResult struct {
	Message     string `json:"message"`
	IsCompleted bool   `json:"isCompleted"`
	NextOrder   *int   `json:"nextOrder,omitempty"`
}

// PracticeSummary is a row of the user's session history
type PracticeSummary struct {
	ID                      string    `json:"id"`
	StartedAt               time.Time `json:"startedAt"`
	IsCompleted             bool      `json:"isCompleted"`
	QuestionCount           int       `json:"questionCount"`
	CompletedResponsesCount int       `json:"completedResponsesCount"`
	DomainName              string    `json:"domainName"`
	LogoURL                 string    `json:"logoUrl,omitempty"`
}

// ResultItem is the per-question part of a results breakdown
type ResultItem struct {
	Order         int    `json:"order"`
	QuestionText  string `json:"questionText"`
	Score         *int   `json:"score"`
	Feedback      string `json:"feedback,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// PracticeResults summarises a practice session
type PracticeResults struct {
	SessionID          string       `json:"sessionId"`
	Message            string       `json:"message,omitempty"`
	TotalScore         *float64     `json:"totalScore,omitempty"`
	Breakdown          []ResultItem `json:"breakdown,omitempty"`
	PendingEvaluations int          `json:"pendingEvaluations"`
}
