package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/ai/gemini"
	"github.com/terra-clan/interview-engine/internal/api"
	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/media"
	"github.com/terra-clan/interview-engine/internal/reconcile"
	"github.com/terra-clan/interview-engine/internal/seed"
	"github.com/terra-clan/interview-engine/internal/services"
	"github.com/terra-clan/interview-engine/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background evaluation workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	slog.Info("starting interview-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"evaluator", cfg.AI.Evaluator,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	applied, err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, storage.MigrationSource(cfg.Database.MigrationsDir))
	if err != nil {
		return fail("failed to run migrations", err)
	}
	slog.Info("migrations complete", "applied", applied)

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fail("failed to create database repository", err)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	// Initialize service registry
	registry := services.NewRegistry()

	postgresProvider, err := services.NewPostgresProvider(initCtx, cfg.Database.DSN)
	if err != nil {
		return fail("failed to create postgres provider", err)
	}
	defer postgresProvider.Close()
	registry.Register("postgres", postgresProvider)

	// Redis is optional; without it evaluation locks are process-local
	var locker interview.Locker
	if cfg.Redis.Address != "" {
		redisProvider, err := services.NewRedisProvider(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis unavailable, using in-process evaluation locks", "address", cfg.Redis.Address, "error", err)
		} else {
			defer redisProvider.Close()
			registry.Register("redis", redisProvider)
			locker = redisProvider.Locker()
		}
	}

	mediaStore, err := media.NewStore(cfg.Media.Root, cfg.Server.BaseURL(), cfg.Media.MaxLogoBytes)
	if err != nil {
		return fail("failed to create media store", err)
	}

	aiClient := ai.NewClient(ai.ClientConfig{
		BaseURL:        cfg.AI.ServiceURL,
		Voice:          cfg.AI.Voice,
		Timeout:        cfg.AI.Timeout,
		RequestsPerSec: cfg.AI.RequestsPerSec,
		Burst:          cfg.AI.Burst,
		MaxLogPreview:  cfg.AI.MaxLogPreview,
	}, ai.WithLogger(slog.Default()))
	if aiClient.Enabled() {
		registry.Register("ai", services.NewCheckFunc("ai", aiClient.Ping))
	}

	evaluator, err := newEvaluator(initCtx, cfg.AI, aiClient, mediaStore)
	if err != nil {
		return fail("failed to create evaluator", err)
	}

	mailer := mail.NewMailer(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}, slog.Default())

	hub := api.NewHub()
	dispatcher := interview.NewDispatcher(repo, evaluator, locker, hub, interview.DispatcherConfig{
		Concurrency: cfg.Evaluation.Concurrency,
		Timeout:     cfg.Evaluation.Timeout,
		MaxAttempts: cfg.Evaluation.MaxAttempts,
		LockTTL:     cfg.Evaluation.LockTTL,
	}, slog.Default())

	interviews := interview.NewService(repo, aiClient, mediaStore, mailer, dispatcher, nil, interview.Config{
		PublicBaseURL:    cfg.Server.BaseURL(),
		SynthesisWorkers: cfg.AI.SynthesisWorker,
	}, slog.Default())

	accounts := auth.NewService(repo, mediaStore, auth.Config{
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, slog.Default())

	if cfg.Auth.BootstrapEmail != "" {
		created, err := accounts.EnsureAdmin(initCtx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword)
		if err != nil {
			return fail("failed to create bootstrap admin", err)
		}
		if created {
			slog.Info("bootstrap admin created", "email", cfg.Auth.BootstrapEmail)
		}
	}

	if cfg.Seed.OnStart {
		seedQuestionBanks(initCtx, cfg.Seed.Dir, repo)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start evaluation reconciler
	reconciler := reconcile.New(repo, dispatcher, accounts, reconcile.Config{
		Interval:    cfg.Evaluation.SweepInterval,
		GracePeriod: cfg.Evaluation.GracePeriod,
		BatchSize:   cfg.Evaluation.BatchSize,
	}, slog.Default())
	reconciler.Start(ctx)

	// Setup HTTP server. Writes stay open for websocket streams and long uploads.
	server := api.NewServer(cfg.Server, interviews, accounts, hub, registry, mediaStore.Root())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		slog.Info("shutting down gracefully...")
	case err := <-serverErr:
		runErr = fail("HTTP server error", err)
	}

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	interviews.Close()
	reconciler.Wait()
	dispatcher.Close()

	slog.Info("interview-engine stopped")
	return runErr
}

// newEvaluator picks the answer scoring backend
func newEvaluator(ctx context.Context, cfg config.AIConfig, client *ai.Client, audio ai.AudioSource) (ai.Evaluator, error) {
	switch cfg.Evaluator {
	case "gemini":
		generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		slog.Info("scoring answers with gemini", "model", generator.Model())
		return gemini.NewEvaluator(generator, audio, slog.Default(), cfg.MaxLogPreview), nil
	case "", "http":
		return client, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", cfg.Evaluator)
	}
}

func seedQuestionBanks(ctx context.Context, dir string, store seed.Store) {
	banks, err := seed.LoadDir(dir)
	if err != nil {
		slog.Warn("failed to load question banks", "dir", dir, "error", err)
		return
	}
	result, err := seed.Apply(ctx, store, banks)
	if err != nil {
		slog.Warn("failed to seed question banks", "dir", dir, "error", err)
		return
	}
	if len(result.Created) > 0 {
		slog.Info("question banks seeded", "created", result.Created)
	}
}
