package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// Event types pushed to session subscribers
const (
	EventEvaluationCompleted = "evaluation.completed"
	EventSessionCompleted    = "session.completed"
)

// Event describes progress of a session's evaluations
type Event struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId"`
	Order     int      `json:"order,omitempty"`
	Score     *int     `json:"score,omitempty"`
	Average   *float64 `json:"averageScore,omitempty"`
}

// Publisher fans events out to subscribers of a session
type Publisher interface {
	Publish(ev Event)
}

// Locker guards a key across processes
type Locker interface {
	// Acquire returns the token of the new hold, or "" when the key is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release frees key only while token still holds it
	Release(ctx context.Context, key, token string) error
}

// DispatcherConfig tunes background evaluation
type DispatcherConfig struct {
	Concurrency int
	Timeout     time.Duration
	MaxAttempts int
	LockTTL     time.Duration
}

// Dispatcher runs answer evaluations in the background, at most once per response at a time
type Dispatcher struct {
	repo      storage.SessionStore
	evaluator ai.Evaluator
	locker    Locker
	events    Publisher
	cfg       DispatcherConfig
	logger    *slog.Logger

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a Dispatcher. locker and events may be nil.
func NewDispatcher(repo storage.SessionStore, evaluator ai.Evaluator, locker Locker, events Publisher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Timeout + time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		repo:      repo,
		evaluator: evaluator,
		locker:    locker,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// MaxAttempts returns the configured attempt limit
func (d *Dispatcher) MaxAttempts() int {
	return d.cfg.MaxAttempts
}

// Dispatch evaluates the responses in the background
func (d *Dispatcher) Dispatch(pending ...models.PendingEvaluation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	for _, p := range pending {
		d.wg.Add(1)
		go func(p models.PendingEvaluation) {
			defer d.wg.Done()

			if err := d.sem.Acquire(d.ctx, 1); err != nil {
				return
			}
			defer d.sem.Release(1)

			if err := d.Evaluate(d.ctx, p); err != nil {
				d.logger.Warn("evaluation failed",
					"kind", p.Kind,
					"response_id", p.ResponseID,
					"session_id", p.SessionID,
					"error", err,
				)
			}
		}(p)
	}
}

// Close stops accepting work and waits for running evaluations to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// Wait blocks until every dispatched evaluation has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func lockKey(p models.PendingEvaluation) string {
	return fmt.Sprintf("evaluation:%s:%s", p.Kind, p.ResponseID)
}

// Evaluate scores one response synchronously. A response locked by another worker is skipped.
func (d *Dispatcher) Evaluate(ctx context.Context, p models.PendingEvaluation) error {
	key := lockKey(p)
	token, err := d.locker.Acquire(ctx, key, d.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire evaluation lock: %w", err)
	}
	if token == "" {
		d.logger.Debug("evaluation already in progress", "response_id", p.ResponseID)
		return nil
	}
	defer func() {
		// Release even when ctx is already cancelled
		if err := d.locker.Release(context.Background(), key, token); err != nil {
			d.logger.Warn("failed to release evaluation lock", "key", key, "error", err)
		}
	}()

	resp, err := d.repo.GetResponse(ctx, p.Kind, p.ResponseID)
	if err != nil {
		return err
	}
	if resp == nil || !resp.Pending() {
		return nil
	}
	if resp.EvaluationAttempts >= d.cfg.MaxAttempts {
		return nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	ev, evalErr := d.evaluator.Evaluate(evalCtx, ai.EvaluationRequest{
		AudioURL:     resp.AudioURL,
		QuestionText: resp.QuestionText,
		IdealAnswer:  resp.IdealAnswer,
	})
	cancel()

	if evalErr != nil {
		if ctx.Err() != nil {
			// Shutdown, not a failure of the response
			return ctx.Err()
		}
		return d.recordFailure(ctx, p.Kind, resp, evalErr)
	}

	ev.Score = ai.ClampScore(ev.Score)
	if err := d.repo.SaveEvaluation(ctx, p.Kind, resp.ID, ev); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil
		}
		return err
	}

	d.logger.Info("response evaluated",
		"kind", p.Kind,
		"response_id", resp.ID,
		"session_id", resp.SessionID,
		"order", resp.Order,
		"score", ev.Score,
	)

	return d.afterEvaluation(ctx, p.Kind, resp, ev.Score)
}

// recordFailure counts a failed attempt. A response that used up its attempts stays
// pending and is no longer retried.
func (d *Dispatcher) recordFailure(ctx context.Context, kind models.SessionKind, resp *models.Response, cause error) error {
	attempts, err := d.repo.RecordEvaluationFailure(ctx, kind, resp.ID)
	if err != nil {
		return errors.Join(cause, err)
	}
	if attempts < d.cfg.MaxAttempts {
		return fmt.Errorf("attempt %d/%d: %w", attempts, d.cfg.MaxAttempts, cause)
	}

	d.logger.Error("giving up on evaluation",
		"kind", kind,
		"response_id", resp.ID,
		"session_id", resp.SessionID,
		"attempts", attempts,
		"error", cause,
	)
	return fmt.Errorf("evaluation abandoned after %d attempts: %w", attempts, cause)
}

func (d *Dispatcher) afterEvaluation(ctx context.Context, kind models.SessionKind, resp *models.Response, score int) error {
	d.publish(Event{Type: EventEvaluationCompleted, SessionID: resp.SessionID, Order: resp.Order, Score: &score})

	switch kind {
	case models.KindCandidate:
		_, err := d.FinalizeCandidate(ctx, resp.SessionID)
		return err
	case models.KindPractice:
		session, err := d.repo.GetPracticeSession(ctx, resp.SessionID)
		if err != nil || session == nil {
			return err
		}
		if session.IsCompleted && AllEvaluated(session.Responses) {
			d.publish(Event{Type: EventSessionCompleted, SessionID: session.ID, Average: PracticeScore(session.Responses)})
		}
	}
	return nil
}

// FinalizeCandidate stores the average score of a completed candidate session once every
// answered response is scored. It reports whether the average was written.
func (d *Dispatcher) FinalizeCandidate(ctx context.Context, sessionID string) (bool, error) {
	session, err := d.repo.GetCandidateSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session == nil || !session.IsCompleted || session.AverageScore != nil {
		return false, nil
	}

	avg, ok := CandidateAverage(session.Responses)
	if !ok {
		return false, nil
	}

	if err := d.repo.SetCandidateAverage(ctx, sessionID, avg); err != nil {
		return false, err
	}

	d.logger.Info("candidate session scored", "session_id", sessionID, "average_score", avg)
	d.publish(Event{Type: EventSessionCompleted, SessionID: sessionID, Average: &avg})
	return true, nil
}

func (d *Dispatcher) publish(ev Event) {
	if d.events != nil {
		d.events.Publish(ev)
	}
}

// LocalLocker is an in-process Locker for single-instance deployments and tests
type LocalLocker struct {
	mu   sync.Mutex
	seq  uint64
	held map[string]localHold
}

type localHold struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an empty LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold)}
}

// Acquire takes key unless it is held and not yet expired
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && time.Now().Before(h.expires) {
		return "", nil
	}
	l.seq++
	token := strconv.FormatUint(l.seq, 10)
	l.held[key] = localHold{token: token, expires: time.Now().Add(ttl)}
	return token, nil
}

// Release frees key if token is its current holder
func (l *LocalLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}
