package models

import "time"

// Domain is a topic category (e.g. "React") grouping practice questions
type Domain struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	LogoURL       string               `json:"logoUrl,omitempty"`
	SessionCount  int                  `json:"sessionCount"`
	QuestionCount int                  `json:"questionCount"`
	CreatedAt     time.Time            `json:"createdAt"`
	Configuration *DomainConfiguration `json:"configuration,omitempty"`
}

// DomainConfiguration sets how many questions of each tier a practice session draws
type DomainConfiguration struct {
	DomainID      string    `json:"domainId"`
	QuestionsPerE int       `json:"questionsPerE"`
	QuestionsPerD int       `json:"questionsPerD"`
	QuestionsPerC int       `json:"questionsPerC"`
	QuestionsPerB int       `json:"questionsPerB"`
	QuestionsPerA int       `json:"questionsPerA"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Tiers converts the configuration into per-tier counts
func (c *DomainConfiguration) Tiers() TierCounts {
	if c == nil {
		return TierCounts{}
	}
	return TierCounts{
		DifficultyE: c.QuestionsPerE,
		DifficultyD: c.QuestionsPerD,
		DifficultyC: c.QuestionsPerC,
		DifficultyB: c.QuestionsPerB,
		DifficultyA: c.QuestionsPerA,
	}
}

// Question is an entry of a domain's question bank
type Question struct {
	ID          string     `json:"id"`
	DomainID    string     `json:"domainId"`
	DomainName  string     `json:"domainName,omitempty"`
	Text        string     `json:"text"`
	IdealAnswer string     `json:"idealAnswer"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// QuestionRequest creates or updates a bank question
type QuestionRequest struct {
	DomainID    string     `json:"domainId"`
	Text        string     `json:"text"`
	IdealAnswer string     `json:"idealAnswer"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
}

// ActivityLog records an administrative event for the dashboard feed
type ActivityLog struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// DashboardStats aggregates counters shown on the admin dashboard
type DashboardStats struct {
	Domains         int `json:"domains"`
	Questions       int `json:"questions"`
	Companies       int `json:"companies"`
	RegularUsers    int `json:"regularUsers"`
	Sessions        int `json:"sessions"`
	CompanySessions int `json:"companySessions"`
}

// DomainRequest creates or renames a domain. LogoURL is set by the server after an upload.
type DomainRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	LogoURL string `json:"-"`
}

// DifficultyRequest changes the tier of a bank question
type DifficultyRequest struct {
	Difficulty Difficulty `json:"difficulty"`
}
