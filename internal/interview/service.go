// Package interview implements the practice and candidate session lifecycle, company
// screening interviews and the admin-curated question bank.
package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// MediaStore persists answer recordings and domain logos
type MediaStore interface {
	SaveAudio(r io.Reader, filename, contentType string) (string, error)
	SaveLogo(r io.Reader, filename string) (string, error)
	Delete(url string) error
}

// Upload is an answer recording received from a client
type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Config holds service settings
type Config struct {
	// PublicBaseURL prefixes candidate invitation links
	PublicBaseURL    string
	SynthesisWorkers int
}

// Service implements the interview operations
type Service struct {
	repo       storage.Repository
	speaker    ai.Speaker
	media      MediaStore
	mailer     mail.Sender
	dispatcher *Dispatcher
	selector   *Selector
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	bg       sync.WaitGroup
	bgMu     sync.Mutex
	closed   bool
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewService creates a new interview Service
func NewService(
	repo storage.Repository,
	speaker ai.Speaker,
	media MediaStore,
	mailer mail.Sender,
	dispatcher *Dispatcher,
	selector *Selector,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if selector == nil {
		selector = NewSelector(nil)
	}
	if cfg.SynthesisWorkers <= 0 {
		cfg.SynthesisWorkers = 4
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:       repo,
		speaker:    speaker,
		media:      media,
		mailer:     mailer,
		dispatcher: dispatcher,
		selector:   selector,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		bgCtx:      ctx,
		bgCancel:   cancel,
	}
}

// Dispatcher returns the evaluation dispatcher
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Ping checks database connectivity
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close cancels background work and waits for it to stop
func (s *Service) Close() {
	s.bgMu.Lock()
	s.closed = true
	s.bgMu.Unlock()

	s.bgCancel()
	s.bg.Wait()
}

// Wait blocks until background synthesis and mail tasks have finished
func (s *Service) Wait() {
	s.bg.Wait()
}

// goBackground runs fn detached from the request context
func (s *Service) goBackground(name string, fn func(ctx context.Context) error) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closed {
		return
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := fn(s.bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// audioTarget is a question whose prompt audio may need synthesizing
type audioTarget struct {
	id   string
	text string
	set  func(ctx context.Context, id, url string) error
}

func (s *Service) bankTarget(id, text string) audioTarget {
	return audioTarget{id: id, text: text, set: s.repo.SetQuestionAudio}
}

func (s *Service) interviewTarget(id, text string) audioTarget {
	return audioTarget{id: id, text: text, set: s.repo.SetInterviewQuestionAudio}
}

// synthesize generates and stores prompt audio. Failures are logged and yield "".
func (s *Service) synthesize(ctx context.Context, t audioTarget) string {
	if s.speaker == nil {
		return ""
	}

	url, err := s.speaker.Synthesize(ctx, t.text)
	if err != nil {
		s.logger.Warn("question audio synthesis failed", "question_id", t.id, "error", err)
		return ""
	}
	if url == "" {
		return ""
	}

	if err := t.set(ctx, t.id, url); err != nil {
		s.logger.Warn("failed to store question audio", "question_id", t.id, "error", err)
	}
	return url
}

// synthesizeAll fills in missing prompt audio in the background
func (s *Service) synthesizeAll(targets []audioTarget) {
	if len(targets) == 0 || s.speaker == nil {
		return
	}

	s.goBackground("synthesize", func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.SynthesisWorkers)
		for _, t := range targets {
			g.Go(func() error {
				s.synthesize(ctx, t)
				return nil
			})
		}
		return g.Wait()
	})
}

// retryPending re-dispatches the session's unevaluated answers and returns how many are pending
func (s *Service) retryPending(kind models.SessionKind, responses []*models.Response) int {
	pending := PendingEvaluations(kind, responses)
	if s.dispatcher == nil || len(pending) == 0 {
		return len(pending)
	}

	retry := make([]models.PendingEvaluation, 0, len(pending))
	for _, p := range pending {
		if p.Attempts < s.dispatcher.MaxAttempts() {
			retry = append(retry, p)
		}
	}
	if len(retry) > 0 {
		s.logger.Debug("re-dispatching pending evaluations", "kind", kind, "count", len(retry))
		s.dispatcher.Dispatch(retry...)
	}
	return len(pending)
}

func (s *Service) logActivity(ctx context.Context, activityType, format string, args ...any) {
	if err := s.repo.LogActivity(ctx, activityType, fmt.Sprintf(format, args...)); err != nil {
		s.logger.Warn("failed to log activity", "type", activityType, "error", err)
	}
}

func newID() string {
	return uuid.New().String()
}

// removeMedia deletes stored recordings and logos, logging failures
func (s *Service) removeMedia(urls []string) {
	if s.media == nil {
		return
	}
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.media.Delete(url); err != nil {
			s.logger.Warn("failed to delete media", "url", url, "error", err)
		}
	}
}
