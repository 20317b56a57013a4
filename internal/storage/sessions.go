package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

// --- Practice sessions ---

// CreatePracticeSession inserts a session with its ordered responses and bumps the domain's session counter
func (r *PostgresRepository) CreatePracticeSession(ctx context.Context, s *models.PracticeSession) error {
	return r.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO practice_sessions (id, user_id, domain_id, started_at, is_completed)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.UserID, s.DomainID, s.StartedAt, s.IsCompleted)
		if err != nil {
			return fmt.Errorf("failed to create practice session: %w", err)
		}

		if err := insertResponses(ctx, tx, "practice_responses", s.Responses); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `UPDATE domains SET session_count = session_count + 1 WHERE id = $1`, s.DomainID)
		if err != nil {
			return fmt.Errorf("failed to increment domain session count: %w", err)
		}
		return expectAffected(tag, "domain", s.DomainID)
	})
}

// GetPracticeSession retrieves a session with its responses in order
func (r *PostgresRepository) GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error) {
	query := `
		SELECT s.id, s.user_id, s.domain_id, d.name, d.logo_url, s.started_at, s.is_completed
		FROM practice_sessions s
		JOIN domains d ON d.id = s.domain_id
		WHERE s.id = $1
	`

	var s models.PracticeSession
	var logoURL sql.NullString

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.DomainID,
		&s.DomainName,
		&logoURL,
		&s.StartedAt,
		&s.IsCompleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get practice session: %w", err)
	}
	s.DomainLogoURL = logoURL.String

	s.Responses, err = r.listResponses(ctx, models.KindPractice, id)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// ListPracticeSessions summarises a user's sessions, newest first
func (r *PostgresRepository) ListPracticeSessions(ctx context.Context, userID string) ([]*models.PracticeSummary, error) {
	query := `
		SELECT s.id, s.started_at, s.is_completed,
		       COUNT(r.id) AS question_count,
		       COUNT(r.evaluated_at) AS evaluated_count,
		       d.name, d.logo_url
		FROM practice_sessions s
		JOIN domains d ON d.id = s.domain_id
		LEFT JOIN practice_responses r ON r.session_id = s.id
		WHERE s.user_id = $1
		GROUP BY s.id, d.name, d.logo_url
		ORDER BY s.started_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list practice sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.PracticeSummary
	for rows.Next() {
		var ps models.PracticeSummary
		var logoURL sql.NullString
		err := rows.Scan(
			&ps.ID,
			&ps.StartedAt,
			&ps.IsCompleted,
			&ps.QuestionCount,
			&ps.CompletedResponsesCount,
			&ps.DomainName,
			&logoURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice session: %w", err)
		}
		ps.LogoURL = logoURL.String
		sessions = append(sessions, &ps)
	}

	return sessions, rows.Err()
}

// DeletePracticeSession removes a session and its responses
func (r *PostgresRepository) DeletePracticeSession(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practice_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete practice session: %w", err)
	}
	return expectAffected(tag, "practice session", id)
}

// --- Responses (shared by both session kinds) ---

func insertResponses(ctx context.Context, tx pgx.Tx, table string, responses []*models.Response) error {
	batch := &pgx.Batch{}
	for _, resp := range responses {
		batch.Queue(
			`INSERT INTO `+table+` (id, session_id, question_id, response_order) VALUES ($1, $2, $3, $4)`,
			resp.ID, resp.SessionID, resp.QuestionID, resp.Order,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range responses {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert response: %w", err)
		}
	}

	return results.Close()
}

func responseSelect(t responseTables) string {
	return `
		SELECT r.id, r.session_id, r.question_id, r.response_order,
		       q.text, q.ideal_answer, q.audio_url, q.difficulty,
		       r.audio_url, r.transcription, r.feedback, r.score,
		       r.evaluation_attempts, r.answered_at, r.evaluated_at
		FROM ` + t.responses + ` r
		JOIN ` + t.questions + ` q ON q.id = r.question_id
	`
}

func (r *PostgresRepository) listResponses(ctx context.Context, kind models.SessionKind, sessionID string) ([]*models.Response, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, responseSelect(t)+` WHERE r.session_id = $1 ORDER BY r.response_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, resp)
	}

	return responses, rows.Err()
}

// GetResponse retrieves a single response with its question fields
func (r *PostgresRepository) GetResponse(ctx context.Context, kind models.SessionKind, id string) (*models.Response, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	resp, err := scanResponse(r.pool.QueryRow(ctx, responseSelect(t)+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return resp, nil
}

// RecordAnswer stores the answer audio of a response and recomputes session completion.
// The update only applies while the response is the session's lowest unanswered one;
// otherwise ErrConflict is returned and nothing changes.
func (r *PostgresRepository) RecordAnswer(ctx context.Context, kind models.SessionKind, sessionID, responseID, audioURL string) (bool, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return false, err
	}

	var completed bool
	err = r.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Serialize submissions of the same session
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM `+t.sessions+` WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE `+t.responses+` r
			SET audio_url = $3, answered_at = NOW()
			WHERE r.id = $1 AND r.session_id = $2 AND r.audio_url IS NULL
			  AND NOT EXISTS (
				SELECT 1 FROM `+t.responses+` p
				WHERE p.session_id = $2 AND p.audio_url IS NULL AND p.response_order < r.response_order
			  )
		`, responseID, sessionID, audioURL)
		if err != nil {
			return fmt.Errorf("failed to record answer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("response %s: %w", responseID, ErrConflict)
		}

		err = tx.QueryRow(ctx, `
			UPDATE `+t.sessions+`
			SET is_completed = NOT EXISTS (
				SELECT 1 FROM `+t.responses+` WHERE session_id = $1 AND audio_url IS NULL
			)
			WHERE id = $1
			RETURNING is_completed
		`, sessionID).Scan(&completed)
		if err != nil {
			return fmt.Errorf("failed to update session completion: %w", err)
		}
		return nil
	})

	return completed, err
}

// SaveEvaluation stores an evaluation. Already evaluated responses are left untouched
// and reported through ErrConflict.
func (r *PostgresRepository) SaveEvaluation(ctx context.Context, kind models.SessionKind, responseID string, ev *models.Evaluation) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE `+t.responses+`
		SET score = $2, feedback = $3, transcription = $4,
		    evaluated_at = NOW(), evaluation_attempts = evaluation_attempts + 1
		WHERE id = $1 AND evaluated_at IS NULL
	`, responseID, ev.Score, ev.Feedback, nullString(ev.Transcription))
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("response %s: %w", responseID, ErrConflict)
	}

	return nil
}

// RecordEvaluationFailure increments the attempt counter and returns the new value
func (r *PostgresRepository) RecordEvaluationFailure(ctx context.Context, kind models.SessionKind, responseID string) (int, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}

	var attempts int
	err = r.pool.QueryRow(ctx,
		`UPDATE `+t.responses+` SET evaluation_attempts = evaluation_attempts + 1 WHERE id = $1 RETURNING evaluation_attempts`,
		responseID,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("response %s: %w", responseID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to record evaluation failure: %w", err)
	}

	return attempts, nil
}

// ListPendingEvaluations returns answered, unevaluated responses of both kinds that were
// answered before the cutoff and have fewer than maxAttempts failed evaluations
func (r *PostgresRepository) ListPendingEvaluations(ctx context.Context, answeredBefore time.Time, maxAttempts, limit int) ([]models.PendingEvaluation, error) {
	query := `
		SELECT 'practice', id, session_id, evaluation_attempts, answered_at
		FROM practice_responses
		WHERE audio_url IS NOT NULL AND evaluated_at IS NULL
		  AND answered_at < $1 AND evaluation_attempts < $2
		UNION ALL
		SELECT 'candidate', id, session_id, evaluation_attempts, answered_at
		FROM candidate_responses
		WHERE audio_url IS NOT NULL AND evaluated_at IS NULL
		  AND answered_at < $1 AND evaluation_attempts < $2
		ORDER BY 5
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, answeredBefore, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending evaluations: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingEvaluation
	for rows.Next() {
		var p models.PendingEvaluation
		var kind string
		var answeredAt time.Time
		if err := rows.Scan(&kind, &p.ResponseID, &p.SessionID, &p.Attempts, &answeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending evaluation: %w", err)
		}
		p.Kind = models.SessionKind(kind)
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

func scanResponse(row pgx.Row) (*models.Response, error) {
	var resp models.Response
	var questionAudio, audioURL, transcription, feedback sql.NullString
	var difficulty string
	var score sql.NullInt32
	var answeredAt, evaluatedAt sql.NullTime

	err := row.Scan(
		&resp.ID,
		&resp.SessionID,
		&resp.QuestionID,
		&resp.Order,
		&resp.QuestionText,
		&resp.IdealAnswer,
		&questionAudio,
		&difficulty,
		&audioURL,
		&transcription,
		&feedback,
		&score,
		&resp.EvaluationAttempts,
		&answeredAt,
		&evaluatedAt,
	)
	if err != nil {
		return nil, err
	}

	resp.QuestionAudioURL = questionAudio.String
	resp.Difficulty = models.Difficulty(difficulty)
	resp.AudioURL = audioURL.String
	resp.Transcription = transcription.String
	resp.Feedback = feedback.String
	resp.Score = intPtr(score)
	resp.AnsweredAt = timePtr(answeredAt)
	resp.EvaluatedAt = timePtr(evaluatedAt)

	return &resp, nil
}
