package interview

import (
	"github.com/terra-clan/interview-engine/internal/models"
)

// NextUnanswered returns the lowest-order response without audio, or nil when all are answered.
// Responses are expected in ascending order.
func NextUnanswered(responses []*models.Response) *models.Response {
	for _, r := range responses {
		if !r.Answered() {
			return r
		}
	}
	return nil
}

// CheckSubmission returns the response an answer for order may be recorded on
func CheckSubmission(responses []*models.Response, order int) (*models.Response, error) {
	next := NextUnanswered(responses)
	if next == nil {
		return nil, ErrAllQuestionsAnswered
	}
	if next.Order != order {
		return nil, ErrQuestionOrderMismatch
	}
	return next, nil
}

// View builds the question a candidate sees for a response
func View(r *models.Response, total int, sessionID string) *models.QuestionView {
	return &models.QuestionView{
		SessionID:      sessionID,
		Order:          r.Order,
		Text:           r.QuestionText,
		AudioURL:       r.QuestionAudioURL,
		Difficulty:     r.Difficulty,
		TotalQuestions: total,
		IsLast:         r.Order == total,
	}
}

// CandidateAverage returns the mean score of the answered responses once every one of them
// is scored. ok is false while any answered response still awaits a score or none is answered.
func CandidateAverage(responses []*models.Response) (avg float64, ok bool) {
	var sum, n int
	for _, r := range responses {
		if !r.Answered() {
			continue
		}
		if r.Score == nil {
			return 0, false
		}
		sum += *r.Score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// PracticeScore averages over the evaluated responses, counting a missing score as 0.
// It returns nil when nothing is evaluated yet.
func PracticeScore(responses []*models.Response) *float64 {
	var sum, n int
	for _, r := range responses {
		if !r.Evaluated() {
			continue
		}
		if r.Score != nil {
			sum += *r.Score
		}
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

// PendingEvaluations lists the answered responses that still await evaluation
func PendingEvaluations(kind models.SessionKind, responses []*models.Response) []models.PendingEvaluation {
	var pending []models.PendingEvaluation
	for _, r := range responses {
		if r.Pending() {
			pending = append(pending, models.PendingEvaluation{
				Kind:       kind,
				ResponseID: r.ID,
				SessionID:  r.SessionID,
				Attempts:   r.EvaluationAttempts,
			})
		}
	}
	return pending
}

// AllEvaluated reports whether every answered response has been evaluated
func AllEvaluated(responses []*models.Response) bool {
	for _, r := range responses {
		if r.Pending() {
			return false
		}
	}
	return true
}
