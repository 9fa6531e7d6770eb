package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/httperror"
	"github.com/kapu/formsmith-server-go/internal/submission"
)

// Result 는 제출 데이터 분석 결과다.
type Result struct {
	FormID      string
	Title       string
	Submissions int
	SampledRows int
	Text        string
	Model       string
}

// Service: 폼 제출 데이터의 자연어 요약을 생성하는 로직 구현체입니다.
// 제출 CSV 샘플을 모델에 넘기고 분석 문장을 돌려받는다.
type Service struct {
	cfg         *config.Config
	client      gemini.LLM
	formStore   *formstore.Store
	submissions *submission.Store
	prompts     *forms.Prompts
	logger      *slog.Logger
}

// New: Insight Service 인스턴스를 생성합니다.
func New(
	cfg *config.Config,
	client gemini.LLM,
	formStore *formstore.Store,
	submissions *submission.Store,
	prompts *forms.Prompts,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:         cfg,
		client:      client,
		formStore:   formStore,
		submissions: submissions,
		prompts:     prompts,
		logger:      logger,
	}
}

// Summarize 는 폼의 제출 데이터를 분석해 요약 텍스트를 만든다.
// 제출이 없으면 submission.ErrNoSubmissions 를 반환한다.
func (s *Service) Summarize(ctx context.Context, requestID string, formID string) (Result, error) {
	if s == nil || s.client == nil || s.formStore == nil || s.submissions == nil || s.prompts == nil {
		return Result{}, httperror.NewInternalError("service not configured")
	}

	formID = strings.TrimSpace(strings.ToLower(formID))
	if formID == "" {
		return Result{}, httperror.NewMissingField("form_id")
	}

	record, err := s.formStore.Get(ctx, formID)
	if err != nil {
		return Result{}, fmt.Errorf("load form: %w", err)
	}
	schema, err := forms.UnmarshalSchema(record.Schema)
	if err != nil {
		s.logError("insight_schema_decode_failed", err)
		return Result{}, httperror.NewInternalError("stored schema is unreadable")
	}

	sample, total, err := s.submissions.CSVSample(formID, s.cfg.Submission.InsightMaxRows)
	if err != nil {
		return Result{}, fmt.Errorf("sample submissions: %w", err)
	}
	if total == 0 {
		return Result{}, submission.ErrNoSubmissions
	}

	sampledRows := total
	if maxRows := s.cfg.Submission.InsightMaxRows; maxRows > 0 && sampledRows > maxRows {
		sampledRows = maxRows
	}

	system, err := s.prompts.InsightSystem()
	if err != nil {
		s.logError("insight_system_prompt_failed", err)
		return Result{}, httperror.NewInternalError("load insight system prompt failed")
	}
	userContent, err := s.prompts.InsightUser(
		schema.Title,
		strings.Join(fieldSummaries(schema), ", "),
		strconv.Itoa(total),
		sample,
	)
	if err != nil {
		s.logError("insight_user_prompt_failed", err)
		return Result{}, httperror.NewInternalError("format insight user prompt failed")
	}

	result, model, err := s.client.Chat(ctx, gemini.Request{
		Prompt:       userContent,
		SystemPrompt: system,
		Task:         "insight",
	})
	if err != nil {
		return Result{}, fmt.Errorf("insight chat: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return Result{}, httperror.NewInternalError("empty insight response")
	}

	s.logInfo(
		"insight_ok",
		"request_id", requestID,
		"form_id", shortID(formID),
		"model", model,
		"total", total,
		"sampled", sampledRows,
	)

	return Result{
		FormID:      formID,
		Title:       schema.Title,
		Submissions: total,
		SampledRows: sampledRows,
		Text:        text,
		Model:       model,
	}, nil
}

// fieldSummaries 는 프롬프트에 넣을 "이름 (유형)" 목록을 만든다.
func fieldSummaries(schema forms.FormSchema) []string {
	summaries := make([]string, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		summaries = append(summaries, fmt.Sprintf("%s (%s)", field.Name, field.Type))
	}
	return summaries
}

func (s *Service) logError(event string, err error) {
	if s == nil || s.logger == nil || err == nil {
		return
	}
	s.logger.Warn(event, "err", err)
}

func (s *Service) logInfo(event string, fields ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Info(event, fields...)
}

func shortID(formID string) string {
	if len(formID) <= 12 {
		return formID
	}
	return formID[:12]
}
