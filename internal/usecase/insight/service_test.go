package insight

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/llm"
	"github.com/kapu/formsmith-server-go/internal/submission"
)

type stubLLM struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (s *stubLLM) Chat(_ context.Context, req gemini.Request) (llm.ChatResult, string, error) {
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	if s.err != nil {
		return llm.ChatResult{}, "stub-model", s.err
	}
	return llm.ChatResult{Text: s.text}, "stub-model", nil
}

func (s *stubLLM) Structured(ctx context.Context, req gemini.Request, _ map[string]any) (llm.ChatResult, string, error) {
	return s.Chat(ctx, req)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Gemini: config.GeminiConfig{
			APIKeys:      []string{"test-key"},
			DefaultModel: "gemini-2.5-flash",
		},
		Submission: config.SubmissionConfig{
			DataDir:        t.TempDir(),
			InsightMaxRows: 2,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, client gemini.LLM) (*Service, *formstore.Store, *submission.Store) {
	t.Helper()

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
	return New(cfg, client, formStore, submissions, prompts, slog.Default()), formStore, submissions
}

func seedForm(t *testing.T, formStore *formstore.Store) (string, forms.FormSchema) {
	t.Helper()

	schema, _, err := forms.Normalize("Lunch Poll", []forms.FieldSpec{
		{Name: "dish", Label: "Dish", Type: forms.FieldChoice, Required: true,
			Validation: forms.RuleSet{forms.RuleChoices: []string{"Pizza", "Sushi"}}},
		{Name: "notes", Label: "Notes", Type: forms.FieldText},
	}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	payload, err := forms.MarshalExchange(schema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	formID := formstore.FormID("a lunch poll")
	now := time.Now().UTC()
	record := formstore.Record{
		ID:          formID,
		Description: "a lunch poll",
		Title:       schema.Title,
		Schema:      payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := formStore.Save(context.Background(), record); err != nil {
		t.Fatalf("save form: %v", err)
	}
	return formID, schema
}

func TestSummarize(t *testing.T) {
	stub := &stubLLM{text: "Most respondents preferred pizza."}
	cfg := testConfig(t)
	service, formStore, submissions := newTestService(t, cfg, stub)
	formID, schema := seedForm(t, formStore)

	for _, dish := range []string{"Pizza", "Pizza", "Sushi"} {
		values := map[string]string{"dish": dish, "notes": ""}
		if _, err := submissions.Append(formID, schema, values); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	result, err := service.Summarize(context.Background(), "req-1", formID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if result.Text != "Most respondents preferred pizza." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Submissions != 3 || result.SampledRows != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Title != "Lunch Poll" {
		t.Fatalf("unexpected title: %q", result.Title)
	}
	if stub.calls != 1 {
		t.Fatalf("expected single model call, got %d", stub.calls)
	}
	if !strings.Contains(stub.prompts[0], "dish (choice)") {
		t.Fatalf("prompt should describe fields: %q", stub.prompts[0])
	}
}

func TestSummarizeNoSubmissions(t *testing.T) {
	stub := &stubLLM{text: "unused"}
	service, formStore, _ := newTestService(t, testConfig(t), stub)
	formID, _ := seedForm(t, formStore)

	_, err := service.Summarize(context.Background(), "req-1", formID)
	if !errors.Is(err, submission.ErrNoSubmissions) {
		t.Fatalf("expected ErrNoSubmissions, got %v", err)
	}
	if stub.calls != 0 {
		t.Fatalf("no submissions must not call the model")
	}
}

func TestSummarizeUnknownForm(t *testing.T) {
	stub := &stubLLM{text: "unused"}
	service, _, _ := newTestService(t, testConfig(t), stub)

	_, err := service.Summarize(context.Background(), "req-1", formstore.FormID("missing"))
	if !errors.Is(err, formstore.ErrFormNotFound) {
		t.Fatalf("expected ErrFormNotFound, got %v", err)
	}
}

func TestSummarizeModelFailure(t *testing.T) {
	stub := &stubLLM{err: gemini.ErrModelUnavailable}
	service, formStore, submissions := newTestService(t, testConfig(t), stub)
	formID, schema := seedForm(t, formStore)

	if _, err := submissions.Append(formID, schema, map[string]string{"dish": "Pizza"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := service.Summarize(context.Background(), "req-1", formID)
	if !errors.Is(err, gemini.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
