package interview

import (
	"errors"
	"fmt"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Common errors
var (
	ErrDomainNotFound          = errors.New("domain not found")
	ErrDomainExists            = errors.New("a domain with this name already exists")
	ErrDomainIDMismatch        = errors.New("domain id in body does not match route")
	ErrQuestionNotFound        = errors.New("question not found")
	ErrSessionNotFound         = errors.New("session not found or access denied")
	ErrAllQuestionsAnswered    = errors.New("all questions already answered")
	ErrQuestionOrderMismatch   = errors.New("answer questions in order")
	ErrNoMoreQuestions         = errors.New("no more questions to answer")
	ErrNoQuestionsConfigured   = errors.New("no questions configured for this interview")
	ErrInvitationInvalid       = errors.New("invalid or expired interview link")
	ErrEmailMismatch           = errors.New("email does not match the invitation")
	ErrCandidateAccessDenied   = errors.New("invalid session or access denied")
	ErrInterviewNotFound       = errors.New("interview not found")
	ErrInterviewFinished       = errors.New("interview is no longer active")
	ErrCandidateAlreadyInvited = errors.New("candidate already invited")
	ErrValidation              = errors.New("validation failed")
	ErrSavedCandidateNotFound  = errors.New("saved candidate not found")
)

// InsufficientQuestionsError reports a tier whose bank is smaller than the configured draw
type InsufficientQuestionsError struct {
	Scope    string
	Tier     models.Difficulty
	Found    int
	Required int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("not enough questions for %s/%s: found %d, required %d", e.Scope, e.Tier, e.Found, e.Required)
}

// ValidationError carries per-field messages and matches ErrValidation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("validation failed: %s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed: %d invalid fields", len(e.Fields))
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// validator collects field errors
type validator map[string]string

func (v validator) check(ok bool, field, msg string) {
	if !ok {
		if _, exists := v[field]; !exists {
			v[field] = msg
		}
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}
