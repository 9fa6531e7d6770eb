package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/llm"
	"github.com/kapu/formsmith-server-go/internal/metrics"
	"github.com/kapu/formsmith-server-go/internal/usage"
)

var (
	// ErrMissingAPIKey 는 Gemini API 키가 없을 때 반환된다.
	ErrMissingAPIKey = errors.New("missing gemini api key")
	// ErrInvalidModel 는 지원하지 않는 모델일 때 반환된다.
	ErrInvalidModel = errors.New("invalid model")
	// ErrModelUnavailable 는 재시도 후에도 모델 호출이 실패했을 때 반환된다.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Request 는 Gemini 요청 데이터다.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Task         string
}

// Client 는 Gemini 호출을 담당한다.
type Client struct {
	cfg           *config.Config
	metrics       *metrics.Store
	usageRecorder *usage.Recorder
	mu            sync.Mutex
	clients       map[string]*genai.Client
	apiKeys       []string
	apiKeyIdx     int
}

// NewClient 는 Gemini 클라이언트를 생성한다.
func NewClient(cfg *config.Config, metricsStore *metrics.Store, usageRecorder *usage.Recorder) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	return &Client{
		cfg:           cfg,
		metrics:       metricsStore,
		usageRecorder: usageRecorder,
		clients:       make(map[string]*genai.Client),
		apiKeys:       cfg.Gemini.APIKeys,
	}, nil
}

// Chat 은 텍스트 채팅 요청을 수행한다.
func (c *Client) Chat(ctx context.Context, req Request) (llm.ChatResult, string, error) {
	return c.call(ctx, req, "", nil)
}

// Structured 는 JSON 스키마 제약 응답을 요청한다. 반환 텍스트의 파싱은
// 호출자 몫이다. 모델이 스키마를 어겼을 때의 처리가 호출자마다 다르기 때문이다.
func (c *Client) Structured(ctx context.Context, req Request, schema map[string]any) (llm.ChatResult, string, error) {
	return c.call(ctx, req, "application/json", schema)
}

func (c *Client) call(
	ctx context.Context,
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) (llm.ChatResult, string, error) {
	start := time.Now()
	response, model, err := c.generate(ctx, req, responseMimeType, responseSchema)
	if err != nil {
		c.metrics.RecordError(time.Since(start))
		return llm.ChatResult{}, model, err
	}

	tokenUsage := extractUsage(response)
	c.metrics.RecordSuccess(time.Since(start), tokenUsage)
	c.recordUsage(ctx, tokenUsage)
	return llm.ChatResult{Text: response.Text(), Usage: tokenUsage}, model, nil
}

func (c *Client) recordUsage(ctx context.Context, tokenUsage llm.Usage) {
	if c.usageRecorder == nil {
		return
	}
	c.usageRecorder.Record(ctx, int64(tokenUsage.InputTokens), int64(tokenUsage.OutputTokens))
}

func (c *Client) generate(
	ctx context.Context,
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) (*genai.GenerateContentResponse, string, error) {
	model, err := c.resolveModel(req.Model, req.Task)
	if err != nil {
		return nil, model, err
	}

	config := c.buildGenerateConfig(req.SystemPrompt, responseMimeType, responseSchema)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	var response *genai.GenerateContentResponse
	operation := func() error {
		client, err := c.selectClient(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		result, err := client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		response = result
		return nil
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 500 * time.Millisecond
	retryBackoff.MaxInterval = 5 * time.Second
	retryBackoff.MaxElapsedTime = 0

	attempts := uint64(c.cfg.Gemini.MaxAttempts)
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(retryBackoff, attempts-1), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, model, err
		}
		if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrInvalidModel) {
			return nil, model, err
		}
		return nil, model, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return response, model, nil
}

func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.apiKeys) == 0 {
		return nil, ErrMissingAPIKey
	}

	key := c.apiKeys[c.apiKeyIdx%len(c.apiKeys)]
	c.apiKeyIdx++
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	timeout := time.Duration(c.cfg.Gemini.TimeoutSeconds) * time.Second
	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			Timeout: genai.Ptr(timeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.clients[key] = client
	return client, nil
}

func (c *Client) resolveModel(modelOverride string, task string) (string, error) {
	model := modelOverride
	if model == "" {
		model = c.cfg.Gemini.ModelForTask(task)
	}
	if model == "" {
		return "", ErrInvalidModel
	}
	if !isGemini(model) {
		return model, ErrInvalidModel
	}
	return model, nil
}

func (c *Client) buildGenerateConfig(
	systemPrompt string,
	responseMimeType string,
	responseSchema map[string]any,
) *genai.GenerateContentConfig {
	temperature := float32(c.cfg.Gemini.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(c.cfg.Gemini.MaxOutputTokens),
	}

	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if responseMimeType != "" {
		config.ResponseMIMEType = responseMimeType
	}
	if responseSchema != nil {
		config.ResponseJsonSchema = responseSchema
	}

	return config
}

func extractUsage(response *genai.GenerateContentResponse) llm.Usage {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}
	}
	meta := response.UsageMetadata
	return llm.Usage{
		InputTokens:  int(meta.PromptTokenCount),
		OutputTokens: int(meta.CandidatesTokenCount),
		TotalTokens:  int(meta.TotalTokenCount),
	}
}

func isGemini(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini-")
}
