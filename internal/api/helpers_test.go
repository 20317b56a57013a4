package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/terra-clan/interview-engine/internal/ai"
	"github.com/terra-clan/interview-engine/internal/auth"
	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/media"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage/memstore"
)

type stubEvaluator struct {
	mu    sync.Mutex
	calls int
}

func (e *stubEvaluator) Evaluate(ctx context.Context, req ai.EvaluationRequest) (*models.Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return &models.Evaluation{Score: 90, Feedback: "Clear and correct.", Transcription: "transcribed answer"}, nil
}

type testAPI struct {
	handler    http.Handler
	repo       *memstore.Store
	accounts   *auth.Service
	interviews *interview.Service
	hub        *Hub
}

func newTestAPI(t *testing.T, cfg config.ServerConfig) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memstore.New()

	store, err := media.NewStore(t.TempDir(), "http://localhost:8080", 0)
	require.NoError(t, err)

	hub := NewHub()
	dispatcher := interview.NewDispatcher(repo, &stubEvaluator{}, nil, hub,
		interview.DispatcherConfig{Timeout: 5 * time.Second}, logger)
	interviews := interview.NewService(
		repo,
		ai.NewClient(ai.ClientConfig{}),
		store,
		mail.NewMailer(mail.Config{}, logger),
		dispatcher,
		interview.NewSelector(rand.NewPCG(7, 11)),
		interview.Config{PublicBaseURL: "https://interviews.example.com"},
		logger,
	)
	accounts := auth.NewService(repo, store, auth.Config{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, logger)

	t.Cleanup(func() {
		interviews.Close()
		dispatcher.Close()
		hub.Close()
	})

	return &testAPI{
		handler:    NewServer(cfg, interviews, accounts, hub, nil, store.Root()).Router(),
		repo:       repo,
		accounts:   accounts,
		interviews: interviews,
		hub:        hub,
	}
}

// settle waits for background synthesis and evaluations
func (a *testAPI) settle() {
	a.interviews.Wait()
	a.interviews.Dispatcher().Wait()
}

func (a *testAPI) register(t *testing.T, req models.RegisterRequest) string {
	t.Helper()
	if req.Password == "" {
		req.Password = "secret1"
	}
	_, err := a.accounts.Register(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := a.accounts.Login(context.Background(), req.Email, req.Password)
	require.NoError(t, err)
	return resp.Token
}

func (a *testAPI) regularToken(t *testing.T) string {
	return a.register(t, models.RegisterRequest{
		Email: "ann@example.com", UserType: models.UserRegular, FirstName: "Ann", LastName: "Lee",
	})
}

func (a *testAPI) companyToken(t *testing.T) string {
	return a.register(t, models.RegisterRequest{
		Email: "hr@acme.com", UserType: models.UserCompany, CompanyName: "Acme",
	})
}

func (a *testAPI) adminToken(t *testing.T) string {
	t.Helper()
	_, err := a.accounts.EnsureAdmin(context.Background(), "root@example.com", "rootpass")
	require.NoError(t, err)
	resp, err := a.accounts.Login(context.Background(), "root@example.com", "rootpass")
	require.NoError(t, err)
	return resp.Token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type multipartFile struct {
	field, filename, contentType string
	content                      []byte
}

func (a *testAPI) doMultipart(t *testing.T, method, path, token string, fields map[string]string, files ...multipartFile) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + f.field + `"; filename="` + f.filename + `"`}
		h["Content-Type"] = []string{f.contentType}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func audioFile() multipartFile {
	return multipartFile{field: "audioResponse", filename: "answer.webm", contentType: "audio/webm", content: []byte("webm-bytes")}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec, nil)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}

func (a *testAPI) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}
