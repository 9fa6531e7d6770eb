package translator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/kapu/formsmith-server-go/internal/cache"
	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/guard"
	"github.com/kapu/formsmith-server-go/internal/httperror"
	"github.com/kapu/formsmith-server-go/internal/metrics"
)

// Result 는 변환 한 건의 결과다.
type Result struct {
	FormID  string
	Model   string
	Cached  bool
	Outcome forms.Outcome
}

// Service: 자연어 설명을 폼 스키마로 변환하는 비즈니스 로직 구현체입니다.
// 같은 설명은 같은 폼 ID 로 결정되므로 캐시와 중복 호출 합치기가 모두
// 폼 ID 를 키로 쓴다.
type Service struct {
	cfg     *config.Config
	client  gemini.LLM
	guard   guard.Guard
	store   *formstore.Store
	prompts *forms.Prompts
	metrics *metrics.Store
	cache   *cache.TTLCache[string, Result]
	group   singleflight.Group
	logger  *slog.Logger
}

// New: Translator Service 인스턴스를 생성합니다.
func New(
	cfg *config.Config,
	client gemini.LLM,
	injectionGuard guard.Guard,
	store *formstore.Store,
	prompts *forms.Prompts,
	metricsStore *metrics.Store,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	cacheSize := cfg.Translator.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cacheTTL := time.Duration(cfg.Translator.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &Service{
		cfg:     cfg,
		client:  client,
		guard:   injectionGuard,
		store:   store,
		prompts: prompts,
		metrics: metricsStore,
		cache:   cache.NewTTLCache[string, Result](cacheSize, cacheTTL),
		logger:  logger,
	}
}

// Translate 는 자연어 설명을 스키마 또는 재확인 요청으로 변환한다.
// 설명이 모순이면 Clarification 을 담은 정상 결과를 반환하고,
// 모델 응답이 JSON 으로 복구되지 않으면 교정 재시도 1회 후 실패한다.
func (s *Service) Translate(ctx context.Context, requestID string, description string) (Result, error) {
	if s == nil || s.client == nil || s.guard == nil || s.prompts == nil {
		return Result{}, httperror.NewInternalError("service not configured")
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return Result{}, httperror.NewMissingField("description")
	}

	if maxRunes := s.cfg.Translator.MaxDescriptionRunes; maxRunes > 0 {
		if length := utf8.RuneCountInString(description); length > maxRunes {
			return Result{}, httperror.NewInvalidInput(
				fmt.Sprintf("description exceeds %d characters", maxRunes))
		}
	}

	if err := s.guard.EnsureSafe(description); err != nil {
		s.logError("translate_guard_failed", err)
		return Result{}, fmt.Errorf("guard description: %w", err)
	}

	formID := formstore.FormID(description)

	if cached, ok := s.cache.Get(formID); ok {
		cached.Cached = true
		s.logInfo("translate_cache_hit", "request_id", requestID, "form_id", shortID(formID))
		return cached, nil
	}

	// shared 는 리더를 포함한 모든 호출자에 true 이므로, 실제 번역을
	// 수행한 호출자는 클로저 안에서 표시해 구분한다.
	var leader bool
	value, err, shared := s.group.Do(formID, func() (any, error) {
		leader = true
		result, err := s.translateUncached(ctx, requestID, formID, description)
		if err != nil {
			return Result{}, err
		}
		s.cache.Set(formID, result)
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}

	result := value.(Result)
	result.Cached = result.Cached || (shared && !leader)
	return result, nil
}

func (s *Service) translateUncached(
	ctx context.Context,
	requestID string,
	formID string,
	description string,
) (Result, error) {
	start := time.Now()

	exchange, model, err := s.requestExchange(ctx, requestID, description)
	if err != nil {
		return Result{}, err
	}

	if exchange.Contradiction {
		s.logInfo(
			"translate_clarification",
			"request_id", requestID,
			"form_id", shortID(formID),
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Result{
			FormID: formID,
			Model:  model,
			Outcome: forms.Outcome{
				Clarification: &forms.Clarification{Explanation: strings.TrimSpace(exchange.Explanation)},
			},
		}, nil
	}

	schema, warnings, err := forms.Normalize(exchange.Title, exchange.Fields, s.cfg.Translator.MaxFields)
	if err != nil {
		s.logError("translate_normalize_failed", err)
		return Result{}, fmt.Errorf("normalize schema: %w", err)
	}

	s.persist(ctx, formID, description, schema, warnings, model)

	s.logInfo(
		"translate_ok",
		"request_id", requestID,
		"form_id", shortID(formID),
		"model", model,
		"fields", len(schema.Fields),
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		FormID:  formID,
		Model:   model,
		Outcome: forms.Outcome{Schema: &schema, Warnings: warnings},
	}, nil
}

// requestExchange 는 모델을 호출하고 응답을 Exchange 로 파싱한다.
// 첫 응답이 파싱되지 않으면 파싱 오류를 포함한 교정 프롬프트로 정확히
// 한 번 더 시도한다.
func (s *Service) requestExchange(
	ctx context.Context,
	requestID string,
	description string,
) (*forms.Exchange, string, error) {
	system, err := s.prompts.GenerateSystem()
	if err != nil {
		s.logError("translate_system_prompt_failed", err)
		return nil, "", httperror.NewInternalError("load generate system prompt failed")
	}
	userContent, err := s.prompts.GenerateUser(description)
	if err != nil {
		s.logError("translate_user_prompt_failed", err)
		return nil, "", httperror.NewInternalError("format generate user prompt failed")
	}

	first, model, err := s.client.Structured(ctx, gemini.Request{
		Prompt:       userContent,
		SystemPrompt: system,
		Task:         "generate",
	}, forms.ExchangeSchema())
	if err != nil {
		return nil, model, fmt.Errorf("generate structured: %w", err)
	}

	exchange, parseErr := forms.ParseExchangeText(first.Text)
	if parseErr == nil {
		return exchange, model, nil
	}

	if s.metrics != nil {
		s.metrics.RecordRetry()
	}
	s.logger.Warn(
		"translate_parse_retry",
		"request_id", requestID,
		"err", parseErr,
		"response_len", len(first.Text),
	)

	repairContent, err := s.prompts.RepairUser(description, parseErr.Error())
	if err != nil {
		s.logError("translate_repair_prompt_failed", err)
		return nil, model, httperror.NewInternalError("format repair prompt failed")
	}

	second, model, err := s.client.Structured(ctx, gemini.Request{
		Prompt:       repairContent,
		SystemPrompt: system,
		Task:         "generate",
	}, forms.ExchangeSchema())
	if err != nil {
		return nil, model, fmt.Errorf("repair structured: %w", err)
	}

	exchange, repairErr := forms.ParseExchangeText(second.Text)
	if repairErr != nil {
		s.logError("translate_parse_failed", repairErr)
		return nil, model, fmt.Errorf("%w: %v", forms.ErrMalformedResponse, repairErr)
	}
	return exchange, model, nil
}

// persist 는 스키마를 폼 저장소에 기록한다. 변환 자체는 저장 실패와
// 무관하게 성공해야 하므로 오류는 로그로만 남긴다.
func (s *Service) persist(
	ctx context.Context,
	formID string,
	description string,
	schema forms.FormSchema,
	warnings []string,
	model string,
) {
	if s.store == nil {
		return
	}

	payload, err := forms.MarshalExchange(schema)
	if err != nil {
		s.logError("form_marshal_failed", err)
		return
	}

	now := time.Now().UTC()
	record := formstore.Record{
		ID:          formID,
		Description: description,
		Title:       schema.Title,
		Schema:      payload,
		Warnings:    warnings,
		Model:       model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, record); err != nil {
		s.logError("form_save_failed", err)
	}
}

// Load 는 저장된 폼을 ID 로 조회하고 스키마를 복원한다.
func (s *Service) Load(ctx context.Context, formID string) (*formstore.Record, forms.FormSchema, error) {
	if s == nil || s.store == nil {
		return nil, forms.FormSchema{}, httperror.NewInternalError("service not configured")
	}

	formID = strings.TrimSpace(strings.ToLower(formID))
	if formID == "" {
		return nil, forms.FormSchema{}, httperror.NewMissingField("form_id")
	}

	record, err := s.store.Get(ctx, formID)
	if err != nil {
		return nil, forms.FormSchema{}, fmt.Errorf("load form: %w", err)
	}

	schema, err := forms.UnmarshalSchema(record.Schema)
	if err != nil {
		s.logError("form_schema_decode_failed", err)
		return nil, forms.FormSchema{}, httperror.NewInternalError("stored schema is unreadable")
	}
	return record, schema, nil
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

// shortID 는 로그용으로 폼 ID 를 앞 12자로 줄인다.
func shortID(formID string) string {
	if len(formID) <= 12 {
		return formID
	}
	return formID[:12]
}
