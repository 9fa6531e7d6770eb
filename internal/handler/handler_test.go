package handler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/guard"
	"github.com/kapu/formsmith-server-go/internal/llm"
	"github.com/kapu/formsmith-server-go/internal/metrics"
	"github.com/kapu/formsmith-server-go/internal/render"
	"github.com/kapu/formsmith-server-go/internal/submission"
	"github.com/kapu/formsmith-server-go/internal/usage"
	"github.com/kapu/formsmith-server-go/internal/usecase/insight"
	"github.com/kapu/formsmith-server-go/internal/usecase/translator"
)

const (
	testAPIKey        = "test-api-key"
	testAdminPassword = "test-admin-pw"
)

// stubLLM 은 준비된 응답을 순서대로 돌려주는 LLM 구현이다.
type stubLLM struct {
	responses []string
	err       error
	calls     int
}

func (s *stubLLM) Chat(_ context.Context, _ gemini.Request) (llm.ChatResult, string, error) {
	return s.next()
}

func (s *stubLLM) Structured(_ context.Context, _ gemini.Request, _ map[string]any) (llm.ChatResult, string, error) {
	return s.next()
}

func (s *stubLLM) next() (llm.ChatResult, string, error) {
	if s.err != nil {
		s.calls++
		return llm.ChatResult{}, "stub-model", s.err
	}
	if s.calls >= len(s.responses) {
		return llm.ChatResult{}, "stub-model", errors.New("stub exhausted")
	}
	text := s.responses[s.calls]
	s.calls++
	return llm.ChatResult{Text: text, Usage: llm.Usage{InputTokens: 5, OutputTokens: 9, TotalTokens: 14}}, "stub-model", nil
}

// stubUsageStore 는 고정된 사용량 행을 돌려준다.
type stubUsageStore struct {
	rows []usage.DailyUsage
}

func (s *stubUsageStore) RecordUsage(context.Context, int64, int64, int64, time.Time) error {
	return nil
}

func (s *stubUsageStore) GetDailyUsage(context.Context, time.Time) (*usage.DailyUsage, error) {
	if len(s.rows) == 0 {
		return nil, nil
	}
	row := s.rows[0]
	return &row, nil
}

func (s *stubUsageStore) GetRecentUsage(context.Context, int) ([]usage.DailyUsage, error) {
	return s.rows, nil
}

func (s *stubUsageStore) GetTotalUsage(context.Context, int) (usage.DailyUsage, error) {
	var total usage.DailyUsage
	for _, row := range s.rows {
		total.InputTokens += row.InputTokens
		total.OutputTokens += row.OutputTokens
		total.RequestCount += row.RequestCount
	}
	return total, nil
}

func (s *stubUsageStore) Close() {}

const rsvpExchange = `{
	"title": "Event RSVP",
	"fields": [
		{"name": "full_name", "label": "Full Name", "type": "text", "required": true,
		 "validation": {"min_length": 2, "max_length": 50}},
		{"name": "email", "label": "Email", "type": "email", "required": true},
		{"name": "meal", "label": "Meal", "type": "choice",
		 "validation": {"choices": ["Veg", "Meat"]}}
	]
}`

func routerTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Logging: config.LoggingConfig{Level: "error"},
		Gemini: config.GeminiConfig{
			APIKeys:        []string{"stub-key"},
			DefaultModel:   "gemini-2.5-flash",
			TimeoutSeconds: 5,
			MaxAttempts:    1,
		},
		Translator: config.TranslatorConfig{
			MaxDescriptionRunes: 500,
			MaxFields:           20,
			CacheSize:           16,
			CacheTTLSeconds:     60,
		},
		Guard: config.GuardConfig{Enabled: true, Threshold: 0.7},
		Submission: config.SubmissionConfig{
			DataDir:        t.TempDir(),
			MaxValueRunes:  2000,
			InsightMaxRows: 5,
		},
		HTTPAuth: config.HTTPAuthConfig{APIKey: testAPIKey},
		Admin: config.AdminConfig{
			Password:        testAdminPassword,
			JWTSecret:       "router-test-secret",
			TokenTTLMinutes: 5,
		},
	}
}

type testEnv struct {
	router      *gin.Engine
	stub        *stubLLM
	cfg         *config.Config
	formStore   *formstore.Store
	submissions *submission.Store
	translator  *translator.Service
}

func newTestEnv(t *testing.T, cfg *config.Config, stub *stubLLM) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.Default()
	injectionGuard, err := guard.NewGuard(cfg, logger)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	formStore, err := formstore.NewStore(cfg)
	if err != nil {
		t.Fatalf("new form store: %v", err)
	}
	submissions, err := submission.NewStore(cfg.Submission.DataDir)
	if err != nil {
		t.Fatalf("new submission store: %v", err)
	}
	prompts, err := forms.NewPrompts()
	if err != nil {
		t.Fatalf("new prompts: %v", err)
	}
	renderer, err := render.NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	translatorService := translator.New(cfg, stub, injectionGuard, formStore, prompts, metrics.NewStore(), logger)
	insightService := insight.New(cfg, stub, formStore, submissions, prompts, logger)

	router := NewRouter(
		cfg,
		logger,
		NewFormsHandler(cfg, translatorService, submissions, logger),
		NewPublicHandler(cfg, translatorService, submissions, renderer, logger),
		NewAdminHandler(cfg, formStore, submissions, insightService, metrics.NewStore(), logger),
		NewUsageHandler(cfg, &stubUsageStore{rows: []usage.DailyUsage{
			{UsageDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), InputTokens: 10, OutputTokens: 20, RequestCount: 2},
			{UsageDate: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), InputTokens: 5, OutputTokens: 5, RequestCount: 1},
		}}, logger),
	)

	return &testEnv{
		router:      router,
		stub:        stub,
		cfg:         cfg,
		formStore:   formStore,
		submissions: submissions,
		translator:  translatorService,
	}
}
