package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errAIDown = errors.New("ai service down")

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSpeaker) Synthesize(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return fmt.Sprintf("http://tts.local/audio/%d.wav", len(f.texts)), nil
}

func (f *fakeSpeaker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeMedia struct {
	mu      sync.Mutex
	n       int
	deleted []string
}

func (f *fakeMedia) SaveAudio(r io.Reader, filename, contentType string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("http://localhost:8080/uploads/audio/answer-%d.webm", f.n), nil
}

func (f *fakeMedia) SaveLogo(r io.Reader, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("http://localhost:8080/uploads/logos/logo-%d.png", f.n), nil
}

func (f *fakeMedia) Delete(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeMedia) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Invitation
}

func (f *fakeMailer) SendInvitation(ctx context.Context, inv mail.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, inv)
	return nil
}

func (f *fakeMailer) invitations() []mail.Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Invitation(nil), f.sent...)
}

type fakeEvaluator struct {
	mu    sync.Mutex
	calls int
	fn    func(req ai.EvaluationRequest) (*models.Evaluation, error)
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req ai.EvaluationRequest) (*models.Evaluation, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return &models.Evaluation{Score: 80, Feedback: "Solid answer.", Transcription: "transcript of " + req.AudioURL}, nil
	}
	return fn(req)
}

func (f *fakeEvaluator) setFn(fn func(req ai.EvaluationRequest) (*models.Evaluation, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) ofType(typ string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	svc       *Service
	repo      *memstore.Store
	speaker   *fakeSpeaker
	media     *fakeMedia
	mailer    *fakeMailer
	evaluator *fakeEvaluator
	events    *recordingPublisher
}

func newTestEnv(t *testing.T, cfg DispatcherConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:      memstore.New(),
		speaker:   &fakeSpeaker{},
		media:     &fakeMedia{},
		mailer:    &fakeMailer{},
		evaluator: &fakeEvaluator{},
		events:    &recordingPublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	dispatcher := NewDispatcher(env.repo, env.evaluator, nil, env.events, cfg, logger)
	env.svc = NewService(
		env.repo,
		env.speaker,
		env.media,
		env.mailer,
		dispatcher,
		NewSelector(rand.NewPCG(1, 2)),
		Config{PublicBaseURL: "https://interviews.example.com/"},
		logger,
	)

	t.Cleanup(func() {
		env.svc.Close()
		dispatcher.Close()
	})
	return env
}

// settle waits for background synthesis, mail and evaluations
func (e *testEnv) settle() {
	e.svc.Wait()
	e.svc.Dispatcher().Wait()
}

func (e *testEnv) seedDomain(t *testing.T, name string, perTier int, tiers models.TierCounts) *models.Domain {
	t.Helper()
	ctx := context.Background()

	d := &models.Domain{ID: newID(), Name: name, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.repo.CreateDomain(ctx, d))
	require.NoError(t, e.repo.UpsertDomainConfiguration(ctx, &models.DomainConfiguration{
		DomainID:      d.ID,
		QuestionsPerE: tiers[models.DifficultyE],
		QuestionsPerD: tiers[models.DifficultyD],
		QuestionsPerC: tiers[models.DifficultyC],
		QuestionsPerB: tiers[models.DifficultyB],
		QuestionsPerA: tiers[models.DifficultyA],
	}))

	for _, tier := range models.AllDifficulties {
		for i := 0; i < perTier; i++ {
			require.NoError(t, e.repo.CreateQuestion(ctx, &models.Question{
				ID:          newID(),
				DomainID:    d.ID,
				Text:        fmt.Sprintf("%s question %s%d", name, tier, i),
				IdealAnswer: fmt.Sprintf("ideal answer %s%d", tier, i),
				Difficulty:  tier,
				CreatedAt:   time.Now().UTC(),
			}))
		}
	}
	return d
}

func (e *testEnv) seedCompany(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID:          newID(),
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@corp.example.com",
		Type:        models.UserCompany,
		CompanyName: name,
		LogoURL:     "http://localhost:8080/uploads/logos/" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".png",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, e.repo.CreateUser(context.Background(), u))
	return u
}

func answer(name string) Upload {
	return Upload{Reader: strings.NewReader("RIFF...."), Filename: name, ContentType: "audio/webm"}
}
