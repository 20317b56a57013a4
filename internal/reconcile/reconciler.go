// Package reconcile re-drives evaluations that were lost to restarts or AI outages.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Store lists work left behind by earlier processes
type Store interface {
	ListPendingEvaluations(ctx context.Context, answeredBefore time.Time, maxAttempts, limit int) ([]models.PendingEvaluation, error)
	ListUnscoredCompletedSessions(ctx context.Context) ([]string, error)
}

// Dispatcher evaluates responses and scores candidate sessions
type Dispatcher interface {
	Dispatch(pending ...models.PendingEvaluation)
	FinalizeCandidate(ctx context.Context, sessionID string) (bool, error)
	MaxAttempts() int
}

// TokenPurger removes expired bearer tokens
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Config tunes the reconciler
type Config struct {
	Interval time.Duration
	// GracePeriod leaves freshly answered responses to the submit path
	GracePeriod time.Duration
	BatchSize   int
}

// Stats summarises one cycle
type Stats struct {
	Dispatched   int
	Finalized    int
	PurgedTokens int64
}

// Reconciler periodically re-dispatches pending evaluations and back-fills candidate averages
type Reconciler struct {
	store      Store
	dispatcher Dispatcher
	tokens     TokenPurger
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// New creates a Reconciler. tokens may be nil.
func New(store Store, dispatcher Dispatcher, tokens TokenPurger, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		store:      store,
		dispatcher: dispatcher,
		tokens:     tokens,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs the reconciler in a goroutine until ctx is cancelled
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()
}

// Wait blocks until a reconciler launched by Start has returned
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Run reconciles once immediately and then on every tick until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started", "interval", r.cfg.Interval, "grace_period", r.cfg.GracePeriod)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.Reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs a single cycle. Failures are logged and the remaining steps still run.
func (r *Reconciler) Reconcile(ctx context.Context) Stats {
	var stats Stats
	r.logger.Debug("running reconcile cycle")

	pending, err := r.store.ListPendingEvaluations(ctx,
		r.now().Add(-r.cfg.GracePeriod), r.dispatcher.MaxAttempts(), r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("failed to list pending evaluations", "error", err)
	} else if len(pending) > 0 {
		r.logger.Info("re-dispatching pending evaluations", "count", len(pending))
		r.dispatcher.Dispatch(pending...)
		stats.Dispatched = len(pending)
	}

	stats.Finalized = r.finalizeCandidates(ctx)

	if r.tokens != nil {
		purged, err := r.tokens.PurgeExpiredTokens(ctx)
		if err != nil {
			r.logger.Error("failed to purge expired tokens", "error", err)
		} else if purged > 0 {
			r.logger.Info("expired tokens purged", "count", purged)
			stats.PurgedTokens = purged
		}
	}

	return stats
}

func (r *Reconciler) finalizeCandidates(ctx context.Context) int {
	ids, err := r.store.ListUnscoredCompletedSessions(ctx)
	if err != nil {
		r.logger.Error("failed to list unscored candidate sessions", "error", err)
		return 0
	}

	finalized := 0
	for _, id := range ids {
		ok, err := r.dispatcher.FinalizeCandidate(ctx, id)
		if err != nil {
			r.logger.Error("failed to finalize candidate session",
				"error", err,
				"session_id", id,
			)
			continue
		}
		if ok {
			finalized++
		}
	}

	if finalized > 0 {
		r.logger.Info("candidate averages back-filled", "count", finalized)
	}
	return finalized
}
