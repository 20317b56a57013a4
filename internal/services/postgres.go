package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresProvider probes PostgreSQL over its own small database/sql pool
type PostgresProvider struct {
	BaseProvider
	db *sql.DB
}

// NewPostgresProvider creates a new PostgreSQL provider
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresProvider{
		BaseProvider: BaseProvider{serviceType: "postgres"},
		db:           db,
	}, nil
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Inspect returns the server version and the size of the current database
func (p *PostgresProvider) Inspect(ctx context.Context) (*DatabaseInfo, error) {
	var info DatabaseInfo
	err := p.db.QueryRowContext(ctx, `
		SELECT version(),
		       pg_size_pretty(pg_database_size(current_database())),
		       pg_database_size(current_database())
	`).Scan(&info.Version, &info.Size, &info.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect database: %w", err)
	}
	return &info, nil
}

// Close closes the probe pool
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}
