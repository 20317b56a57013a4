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

const domainSelect = `
	SELECT d.id, d.name, d.logo_url, d.session_count, d.created_at,
	       (SELECT COUNT(*) FROM questions q WHERE q.domain_id = d.id) AS question_count,
	       c.domain_id, c.questions_per_e, c.questions_per_d, c.questions_per_c,
	       c.questions_per_b, c.questions_per_a, c.created_at, c.updated_at
	FROM domains d
	LEFT JOIN domain_configurations c ON c.domain_id = d.id
`

// CreateDomain inserts a new domain. Names are unique case-insensitively.
func (r *PostgresRepository) CreateDomain(ctx context.Context, d *models.Domain) error {
	query := `
		INSERT INTO domains (id, name, logo_url, session_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, d.ID, d.Name, nullString(d.LogoURL), d.SessionCount, d.CreatedAt); err != nil {
		return mapWriteError(err, "create domain")
	}

	return nil
}

// GetDomain retrieves a domain with its configuration
func (r *PostgresRepository) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	return r.getDomain(ctx, `d.id = $1`, id)
}

// GetDomainByName retrieves a domain by name, ignoring case
func (r *PostgresRepository) GetDomainByName(ctx context.Context, name string) (*models.Domain, error) {
	return r.getDomain(ctx, `LOWER(d.name) = LOWER($1)`, name)
}

func (r *PostgresRepository) getDomain(ctx context.Context, where, arg string) (*models.Domain, error) {
	d, err := scanDomain(r.pool.QueryRow(ctx, domainSelect+` WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return d, nil
}

// ListDomains returns all domains ordered by name
func (r *PostgresRepository) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	rows, err := r.pool.Query(ctx, domainSelect+` ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []*models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}

	return domains, rows.Err()
}

// UpdateDomain updates the name and logo of a domain
func (r *PostgresRepository) UpdateDomain(ctx context.Context, d *models.Domain) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE domains SET name = $2, logo_url = $3 WHERE id = $1`,
		d.ID, d.Name, nullString(d.LogoURL),
	)
	if err != nil {
		return mapWriteError(err, "update domain")
	}
	return expectAffected(tag, "domain", d.ID)
}

// DeleteDomain removes a domain together with its questions and sessions
func (r *PostgresRepository) DeleteDomain(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	return expectAffected(tag, "domain", id)
}

// UpsertDomainConfiguration creates or replaces the tier counts of a domain
func (r *PostgresRepository) UpsertDomainConfiguration(ctx context.Context, c *models.DomainConfiguration) error {
	query := `
		INSERT INTO domain_configurations
			(domain_id, questions_per_e, questions_per_d, questions_per_c, questions_per_b, questions_per_a, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (domain_id) DO UPDATE SET
			questions_per_e = EXCLUDED.questions_per_e,
			questions_per_d = EXCLUDED.questions_per_d,
			questions_per_c = EXCLUDED.questions_per_c,
			questions_per_b = EXCLUDED.questions_per_b,
			questions_per_a = EXCLUDED.questions_per_a,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.DomainID,
		c.QuestionsPerE,
		c.QuestionsPerD,
		c.QuestionsPerC,
		c.QuestionsPerB,
		c.QuestionsPerA,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert domain configuration: %w", err)
	}

	return nil
}

func scanDomain(row pgx.Row) (*models.Domain, error) {
	var d models.Domain
	var logoURL, cfgDomainID sql.NullString
	var perE, perD, perC, perB, perA sql.NullInt32
	var cfgCreated, cfgUpdated sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.Name,
		&logoURL,
		&d.SessionCount,
		&d.CreatedAt,
		&d.QuestionCount,
		&cfgDomainID,
		&perE, &perD, &perC, &perB, &perA,
		&cfgCreated,
		&cfgUpdated,
	)
	if err != nil {
		return nil, err
	}

	d.LogoURL = logoURL.String

	if cfgDomainID.Valid {
		d.Configuration = &models.DomainConfiguration{
			DomainID:      cfgDomainID.String,
			QuestionsPerE: int(perE.Int32),
			QuestionsPerD: int(perD.Int32),
			QuestionsPerC: int(perC.Int32),
			QuestionsPerB: int(perB.Int32),
			QuestionsPerA: int(perA.Int32),
			CreatedAt:     cfgCreated.Time,
			UpdatedAt:     cfgUpdated.Time,
		}
	}

	return &d, nil
}

// --- Questions ---

const questionSelect = `
	SELECT q.id, q.domain_id, d.name, q.text, q.ideal_answer, q.audio_url, q.difficulty, q.created_at
	FROM questions q
	JOIN domains d ON d.id = q.domain_id
`

// CreateQuestion inserts a bank question
func (r *PostgresRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	query := `
		INSERT INTO questions (id, domain_id, text, ideal_answer, audio_url, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		q.ID,
		q.DomainID,
		q.Text,
		q.IdealAnswer,
		nullString(q.AudioURL),
		string(q.Difficulty),
		q.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create question")
	}

	return nil
}

// GetQuestion retrieves a bank question by ID
func (r *PostgresRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, questionSelect+` WHERE q.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// ListQuestions returns a domain's questions ordered by tier, easiest first
func (r *PostgresRepository) ListQuestions(ctx context.Context, domainID string) ([]*models.Question, error) {
	query := questionSelect + `
		WHERE q.domain_id = $1
		ORDER BY CASE q.difficulty WHEN 'E' THEN 0 WHEN 'D' THEN 1 WHEN 'C' THEN 2 WHEN 'B' THEN 3 ELSE 4 END, q.created_at
	`

	rows, err := r.pool.Query(ctx, query, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// UpdateQuestion replaces the editable fields of a bank question
func (r *PostgresRepository) UpdateQuestion(ctx context.Context, q *models.Question) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET text = $2, ideal_answer = $3, audio_url = $4, difficulty = $5
		WHERE id = $1
	`, q.ID, q.Text, q.IdealAnswer, nullString(q.AudioURL), string(q.Difficulty))
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return expectAffected(tag, "question", q.ID)
}

// SetQuestionAudio stores the synthesized audio URL of a bank question
func (r *PostgresRepository) SetQuestionAudio(ctx context.Context, id, audioURL string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET audio_url = $2 WHERE id = $1`, id, nullString(audioURL))
	if err != nil {
		return fmt.Errorf("failed to set question audio: %w", err)
	}
	return expectAffected(tag, "question", id)
}

// DeleteQuestion removes a bank question
func (r *PostgresRepository) DeleteQuestion(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return expectAffected(tag, "question", id)
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	var audioURL sql.NullString
	var difficulty string

	err := row.Scan(
		&q.ID,
		&q.DomainID,
		&q.DomainName,
		&q.Text,
		&q.IdealAnswer,
		&audioURL,
		&difficulty,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.AudioURL = audioURL.String
	q.Difficulty = models.Difficulty(difficulty)
	return &q, nil
}

// --- Activity log ---

// LogActivity appends an entry to the admin activity feed
func (r *PostgresRepository) LogActivity(ctx context.Context, activityType, description string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_logs (type, description, timestamp) VALUES ($1, $2, $3)`,
		activityType, description, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// ListRecentActivity returns the latest activity entries, newest first
func (r *PostgresRepository) ListRecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, description, timestamp FROM activity_logs ORDER BY timestamp DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		var a models.ActivityLog
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		entries = append(entries, &a)
	}

	return entries, rows.Err()
}

// Stats counts the entities shown on the admin dashboard
func (r *PostgresRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM domains),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM users WHERE user_type = 'company'),
			(SELECT COUNT(*) FROM users WHERE user_type = 'regular'),
			(SELECT COUNT(*) FROM practice_sessions),
			(SELECT COUNT(*) FROM candidate_sessions)
	`

	var s models.DashboardStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.Domains,
		&s.Questions,
		&s.Companies,
		&s.RegularUsers,
		&s.Sessions,
		&s.CompanySessions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	return &s, nil
}
