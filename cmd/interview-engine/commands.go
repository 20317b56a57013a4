package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/seed"
	"github.com/terra-clan/interview-engine/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		applied, err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, storage.MigrationSource(cfg.Database.MigrationsDir))
		if err != nil {
			return fail("failed to run migrations", err)
		}
		slog.Info("migrations complete", "applied", applied)
		return nil
	},
}

var seedDir string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import YAML question banks into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if seedDir != "" {
			cfg.Seed.Dir = seedDir
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		banks, err := seed.LoadDir(cfg.Seed.Dir)
		if err != nil {
			return fail("failed to load question banks", err)
		}

		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: cfg.Database.DSN, MaxOpenConns: 2})
		if err != nil {
			return fail("failed to connect to database", err)
		}
		defer repo.Close()

		result, err := seed.Apply(ctx, repo, banks)
		if err != nil {
			return fail("failed to seed question banks", err)
		}
		slog.Info("seed complete", "created", result.Created, "skipped", result.Skipped)

		if cfg.Auth.BootstrapEmail == "" {
			return nil
		}
		accounts := auth.NewService(repo, nil, auth.Config{
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		}, slog.Default())
		created, err := accounts.EnsureAdmin(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword)
		if err != nil {
			return fail("failed to create bootstrap admin", err)
		}
		slog.Info("bootstrap admin checked", "email", cfg.Auth.BootstrapEmail, "created", created)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedDir, "dir", "", "directory of question bank files (overrides seed.dir)")
}
