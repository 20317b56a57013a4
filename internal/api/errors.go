package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/media"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is
var errorMappings = []errorMapping{
	// 400
	{interview.ErrValidation, http.StatusBadRequest, "validation_error"},
	{auth.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{interview.ErrQuestionOrderMismatch, http.StatusBadRequest, "question_order_mismatch"},
	{interview.ErrAllQuestionsAnswered, http.StatusBadRequest, "all_questions_answered"},
	{interview.ErrNoMoreQuestions, http.StatusBadRequest, "no_more_questions"},
	{interview.ErrNoQuestionsConfigured, http.StatusBadRequest, "no_questions_configured"},
	{interview.ErrInvitationInvalid, http.StatusBadRequest, "invitation_invalid"},
	{interview.ErrEmailMismatch, http.StatusBadRequest, "email_mismatch"},
	{interview.ErrDomainIDMismatch, http.StatusBadRequest, "id_mismatch"},
	{media.ErrUnsupportedType, http.StatusBadRequest, "unsupported_media_type"},
	{media.ErrTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},

	// 401
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},

	// 403
	{interview.ErrCandidateAccessDenied, http.StatusForbidden, "forbidden"},
	{auth.ErrSelfDeletion, http.StatusForbidden, "forbidden"},

	// 404
	{interview.ErrDomainNotFound, http.StatusNotFound, "not_found"},
	{interview.ErrQuestionNotFound, http.StatusNotFound, "not_found"},
	{interview.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{interview.ErrInterviewNotFound, http.StatusNotFound, "not_found"},
	{interview.ErrSavedCandidateNotFound, http.StatusNotFound, "not_found"},
	{auth.ErrUserNotFound, http.StatusNotFound, "not_found"},

	// 409
	{interview.ErrDomainExists, http.StatusConflict, "conflict"},
	{interview.ErrCandidateAlreadyInvited, http.StatusConflict, "conflict"},
	{interview.ErrInterviewFinished, http.StatusConflict, "conflict"},
	{auth.ErrEmailTaken, http.StatusConflict, "conflict"},
}

// respondServiceError maps a service error to a status and code. Unknown errors are
// logged and reported as "failed to <action>".
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var insufficient *interview.InsufficientQuestionsError
	if errors.As(err, &insufficient) {
		respondError(w, http.StatusBadRequest, "insufficient_questions", insufficient.Error())
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}

		e := &apiError{Code: m.code, Message: err.Error()}
		var validation *interview.ValidationError
		if errors.As(err, &validation) {
			e.Fields = validation.Fields
		}
		respondAPIError(w, m.status, e)
		return
	}

	slog.Error("failed to "+action,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
}
