package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

// CreateCompanyInterview inserts an interview with its questions and invitations
func (r *PostgresRepository) CreateCompanyInterview(ctx context.Context, ci *models.CompanyInterview) error {
	return r.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO company_interviews (id, company_id, title, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, ci.ID, ci.CompanyID, ci.Title, ci.IsActive, ci.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create company interview: %w", err)
		}

		batch := &pgx.Batch{}
		for _, q := range ci.Questions {
			batch.Queue(`
				INSERT INTO interview_questions (id, interview_id, text, ideal_answer, audio_url, difficulty, question_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, q.ID, ci.ID, q.Text, q.IdealAnswer, nullString(q.AudioURL), string(q.Difficulty), q.Order)
		}
		if err := execBatch(ctx, tx, batch, len(ci.Questions), "insert interview question"); err != nil {
			return err
		}

		return insertInvitations(ctx, tx, ci.Invitations)
	})
}

// CreateInvitations adds invitations to an existing interview
func (r *PostgresRepository) CreateInvitations(ctx context.Context, invitations []*models.CandidateInvitation) error {
	return r.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return insertInvitations(ctx, tx, invitations)
	})
}

func insertInvitations(ctx context.Context, tx pgx.Tx, invitations []*models.CandidateInvitation) error {
	batch := &pgx.Batch{}
	for _, inv := range invitations {
		batch.Queue(`
			INSERT INTO candidate_invitations (id, interview_id, candidate_email, token, is_used, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
		`, inv.ID, inv.InterviewID, inv.CandidateEmail, inv.Token, inv.CreatedAt)
	}
	return execBatch(ctx, tx, batch, len(invitations), "insert invitation")
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, n int, what string) error {
	if n == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return mapWriteError(err, what)
		}
	}
	return results.Close()
}

// GetCompanyInterview retrieves an interview with its ordered questions and invitations
func (r *PostgresRepository) GetCompanyInterview(ctx context.Context, id string) (*models.CompanyInterview, error) {
	var ci models.CompanyInterview
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_id, title, is_active, created_at
		FROM company_interviews
		WHERE id = $1
	`, id).Scan(&ci.ID, &ci.CompanyID, &ci.Title, &ci.IsActive, &ci.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get company interview: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, interview_id, text, ideal_answer, audio_url, difficulty, question_order
		FROM interview_questions
		WHERE interview_id = $1
		ORDER BY question_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list interview questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q models.InterviewQuestion
		var audioURL sql.NullString
		var difficulty string
		if err := rows.Scan(&q.ID, &q.InterviewID, &q.Text, &q.IdealAnswer, &audioURL, &difficulty, &q.Order); err != nil {
			return nil, fmt.Errorf("failed to scan interview question: %w", err)
		}
		q.AudioURL = audioURL.String
		q.Difficulty = models.Difficulty(difficulty)
		ci.Questions = append(ci.Questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interview questions: %w", err)
	}

	ci.Invitations, err = r.listInvitations(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ci, nil
}

// ListCompanyInterviews summarises a company's interviews, newest first
func (r *PostgresRepository) ListCompanyInterviews(ctx context.Context, companyID string) ([]*models.InterviewSummary, error) {
	query := `
		SELECT ci.id, ci.title, ci.is_active, ci.created_at,
		       (SELECT COUNT(*) FROM interview_questions q WHERE q.interview_id = ci.id),
		       (SELECT COUNT(*) FROM candidate_sessions s WHERE s.interview_id = ci.id),
		       (SELECT COUNT(*) FROM candidate_invitations i WHERE i.interview_id = ci.id)
		FROM company_interviews ci
		WHERE ci.company_id = $1
		ORDER BY ci.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list company interviews: %w", err)
	}
	defer rows.Close()

	var summaries []*models.InterviewSummary
	for rows.Next() {
		var s models.InterviewSummary
		err := rows.Scan(&s.ID, &s.Title, &s.IsActive, &s.CreatedAt, &s.QuestionCount, &s.SessionCount, &s.InvitationCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company interview: %w", err)
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

// DeactivateInterview marks an active interview as finished.
// ErrConflict is returned when it was already inactive.
func (r *PostgresRepository) DeactivateInterview(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE company_interviews SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("failed to finish interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("interview %s: %w", id, ErrConflict)
	}
	return nil
}

// DeleteCompanyInterview removes an interview and everything hanging off it
func (r *PostgresRepository) DeleteCompanyInterview(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM company_interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company interview: %w", err)
	}
	return expectAffected(tag, "company interview", id)
}

// SetInterviewQuestionAudio stores the synthesized audio URL of an interview question
func (r *PostgresRepository) SetInterviewQuestionAudio(ctx context.Context, id, audioURL string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE interview_questions SET audio_url = $2 WHERE id = $1`, id, nullString(audioURL))
	if err != nil {
		return fmt.Errorf("failed to set interview question audio: %w", err)
	}
	return expectAffected(tag, "interview question", id)
}

// --- Invitations ---

const invitationColumns = `id, interview_id, candidate_email, token, is_used, created_at, session_id`

func (r *PostgresRepository) listInvitations(ctx context.Context, interviewID string) ([]*models.CandidateInvitation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM candidate_invitations WHERE interview_id = $1 ORDER BY created_at, candidate_email`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.CandidateInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// GetInvitationByToken retrieves an invitation by its link token
func (r *PostgresRepository) GetInvitationByToken(ctx context.Context, token string) (*models.CandidateInvitation, error) {
	return r.getInvitation(ctx, "token", token)
}

// GetInvitationBySession retrieves the invitation that started a candidate session
func (r *PostgresRepository) GetInvitationBySession(ctx context.Context, sessionID string) (*models.CandidateInvitation, error) {
	return r.getInvitation(ctx, "session_id", sessionID)
}

func (r *PostgresRepository) getInvitation(ctx context.Context, field, value string) (*models.CandidateInvitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidate_invitations WHERE %s = $1`, invitationColumns, field)

	inv, err := scanInvitation(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func scanInvitation(row pgx.Row) (*models.CandidateInvitation, error) {
	var inv models.CandidateInvitation
	var sessionID sql.NullString

	err := row.Scan(&inv.ID, &inv.InterviewID, &inv.CandidateEmail, &inv.Token, &inv.IsUsed, &inv.CreatedAt, &sessionID)
	if err != nil {
		return nil, err
	}

	inv.SessionID = sessionID.String
	return &inv, nil
}

// --- Candidate sessions ---

// StartCandidateSession claims an unused invitation and creates the candidate session in one transaction.
// A concurrent redemption of the same invitation yields ErrConflict.
func (r *PostgresRepository) StartCandidateSession(ctx context.Context, invitationID string, s *models.CandidateSession) error {
	return r.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE candidate_invitations SET is_used = TRUE WHERE id = $1 AND NOT is_used`,
			invitationID,
		)
		if err != nil {
			return fmt.Errorf("failed to claim invitation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("invitation %s: %w", invitationID, ErrConflict)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO candidate_sessions (id, interview_id, candidate_email, started_at, is_completed)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.InterviewID, s.CandidateEmail, s.StartedAt, s.IsCompleted)
		if err != nil {
			return fmt.Errorf("failed to create candidate session: %w", err)
		}

		if err := insertResponses(ctx, tx, "candidate_responses", s.Responses); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE candidate_invitations SET session_id = $2 WHERE id = $1`, invitationID, s.ID); err != nil {
			return fmt.Errorf("failed to link invitation to session: %w", err)
		}
		return nil
	})
}

const candidateSessionColumns = `id, interview_id, candidate_email, started_at, is_completed, average_score`

// GetCandidateSession retrieves a candidate session with its responses in order
func (r *PostgresRepository) GetCandidateSession(ctx context.Context, id string) (*models.CandidateSession, error) {
	s, err := scanCandidateSession(r.pool.QueryRow(ctx,
		`SELECT `+candidateSessionColumns+` FROM candidate_sessions WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get candidate session: %w", err)
	}

	s.Responses, err = r.listResponses(ctx, models.KindCandidate, id)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ListCandidateSessions returns an interview's sessions with their responses
func (r *PostgresRepository) ListCandidateSessions(ctx context.Context, interviewID string) ([]*models.CandidateSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+candidateSessionColumns+` FROM candidate_sessions WHERE interview_id = $1 ORDER BY started_at`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate sessions: %w", err)
	}

	var sessions []*models.CandidateSession
	for rows.Next() {
		s, err := scanCandidateSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan candidate session: %w", err)
		}
		sessions = append(sessions, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate sessions: %w", err)
	}

	for _, s := range sessions {
		if s.Responses, err = r.listResponses(ctx, models.KindCandidate, s.ID); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

// SetCandidateAverage stores the final average score of a candidate session
func (r *PostgresRepository) SetCandidateAverage(ctx context.Context, sessionID string, average float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE candidate_sessions SET average_score = $2 WHERE id = $1`, sessionID, average)
	if err != nil {
		return fmt.Errorf("failed to set candidate average: %w", err)
	}
	return expectAffected(tag, "candidate session", sessionID)
}

// ListUnscoredCompletedSessions returns completed candidate sessions whose average is still missing
// although every answered response has been evaluated
func (r *PostgresRepository) ListUnscoredCompletedSessions(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id
		FROM candidate_sessions s
		WHERE s.is_completed AND s.average_score IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM candidate_responses r
			WHERE r.session_id = s.id AND r.audio_url IS NOT NULL AND r.score IS NULL
		  )
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanCandidateSession(row pgx.Row) (*models.CandidateSession, error) {
	var s models.CandidateSession
	var average sql.NullFloat64

	if err := row.Scan(&s.ID, &s.InterviewID, &s.CandidateEmail, &s.StartedAt, &s.IsCompleted, &average); err != nil {
		return nil, err
	}

	s.AverageScore = floatPtr(average)
	return &s, nil
}

// --- Saved candidates ---

const savedColumns = `id, company_id, session_id, candidate_email, interview_id, interview_title, average_score, saved_at`

// CreateSavedCandidate bookmarks a candidate session for a company
func (r *PostgresRepository) CreateSavedCandidate(ctx context.Context, sc *models.SavedCandidate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO saved_candidates (`+savedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sc.ID, sc.CompanyID, sc.SessionID, sc.CandidateEmail, sc.InterviewID, sc.InterviewTitle, nullFloat(sc.AverageScore), sc.SavedAt)
	if err != nil {
		return mapWriteError(err, "create saved candidate")
	}
	return nil
}

// GetSavedCandidateBySession looks up a company's bookmark of a session
func (r *PostgresRepository) GetSavedCandidateBySession(ctx context.Context, companyID, sessionID string) (*models.SavedCandidate, error) {
	sc, err := scanSaved(r.pool.QueryRow(ctx,
		`SELECT `+savedColumns+` FROM saved_candidates WHERE company_id = $1 AND session_id = $2`,
		companyID, sessionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get saved candidate: %w", err)
	}
	return sc, nil
}

// ListSavedCandidates returns a company's bookmarks, most recent first
func (r *PostgresRepository) ListSavedCandidates(ctx context.Context, companyID string) ([]*models.SavedCandidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+savedColumns+` FROM saved_candidates WHERE company_id = $1 ORDER BY saved_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved candidates: %w", err)
	}
	defer rows.Close()

	var saved []*models.SavedCandidate
	for rows.Next() {
		sc, err := scanSaved(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved candidate: %w", err)
		}
		saved = append(saved, sc)
	}

	return saved, rows.Err()
}

// DeleteSavedCandidate removes a company's bookmark
func (r *PostgresRepository) DeleteSavedCandidate(ctx context.Context, companyID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM saved_candidates WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete saved candidate: %w", err)
	}
	return expectAffected(tag, "saved candidate", id)
}

func scanSaved(row pgx.Row) (*models.SavedCandidate, error) {
	var sc models.SavedCandidate
	var average sql.NullFloat64

	err := row.Scan(&sc.ID, &sc.CompanyID, &sc.SessionID, &sc.CandidateEmail, &sc.InterviewID, &sc.InterviewTitle, &average, &sc.SavedAt)
	if err != nil {
		return nil, err
	}

	sc.AverageScore = floatPtr(average)
	return &sc, nil
}
