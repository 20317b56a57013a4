package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/terra-clan/interview-engine/internal/models"
)

const userColumns = `id, email, password_hash, user_type, first_name, last_name, company_name, logo_url, department, created_at`

// CreateUser inserts a new account. Emails are unique case-insensitively.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		string(u.Type),
		nullString(u.FirstName),
		nullString(u.LastName),
		nullString(u.CompanyName),
		nullString(u.LogoURL),
		nullString(u.Department),
		u.CreatedAt,
	)
	if err != nil {
		return mapWriteError(err, "create user")
	}

	return nil
}

// GetUserByID retrieves an account by ID
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

// GetUserByEmail retrieves an account by email, ignoring case
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `LOWER(email) = LOWER($1)`, email)
}

func (r *PostgresRepository) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// ListUsers returns all accounts of the given type, newest first
func (r *PostgresRepository) ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_type = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, string(userType))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// DeleteUser removes an account of the given type. Owned data cascades.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id string, userType models.UserType) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND user_type = $2`, id, string(userType))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(tag, "user", id)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var userType string
	var firstName, lastName, companyName, logoURL, department sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&userType,
		&firstName,
		&lastName,
		&companyName,
		&logoURL,
		&department,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Type = models.UserType(userType)
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.CompanyName = companyName.String
	u.LogoURL = logoURL.String
	u.Department = department.String

	return &u, nil
}

// --- Auth tokens ---

// CreateAuthToken stores a newly issued bearer token
func (r *PostgresRepository) CreateAuthToken(ctx context.Context, t *models.AuthToken) error {
	query := `
		INSERT INTO auth_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.pool.Exec(ctx, query, t.Token, t.UserID, t.CreatedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}

	return nil
}

// GetAuthToken retrieves a token record
func (r *PostgresRepository) GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error) {
	query := `
		SELECT token, user_id, created_at, expires_at, last_used_at
		FROM auth_tokens
		WHERE token = $1
	`

	var t models.AuthToken
	var lastUsedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.UserID,
		&t.CreatedAt,
		&t.ExpiresAt,
		&lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}

	t.LastUsedAt = timePtr(lastUsedAt)
	return &t, nil
}

// TouchAuthToken updates the last_used_at timestamp of a token
func (r *PostgresRepository) TouchAuthToken(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE auth_tokens SET last_used_at = NOW() WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to update token last_used_at: %w", err)
	}
	return nil
}

// DeleteAuthToken revokes a token
func (r *PostgresRepository) DeleteAuthToken(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete auth token: %w", err)
	}
	return nil
}

// DeleteExpiredAuthTokens purges tokens past their expiry and reports how many were removed
func (r *PostgresRepository) DeleteExpiredAuthTokens(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
