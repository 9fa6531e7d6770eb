package health

import (
	"context"
	"time"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/formstore"
)

var startTime = time.Now()

// Component 는 상태 구성 요소다.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response 는 상태 응답 본문이다.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Collect 는 헬스 상태를 수집한다. deepChecks 가 켜져 있을 때만 폼 저장소에
// 실제로 접속한다. liveness 판정이 외부 의존성에 끌려가지 않게 한다.
func Collect(ctx context.Context, cfg *config.Config, deepChecks bool) Response {
	components := map[string]Component{
		"app":        buildAppStatus(),
		"form_store": buildFormStoreStatus(ctx, cfg, deepChecks),
		"gemini":     buildGeminiStatus(cfg),
	}

	overall := "ok"
	for _, component := range components {
		if component.Status != "ok" {
			overall = "degraded"
			break
		}
	}

	return Response{Status: overall, Components: components}
}

func buildAppStatus() Component {
	return Component{
		Status: "ok",
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		},
	}
}

func buildGeminiStatus(cfg *config.Config) Component {
	apiKeyPresent := false
	defaultModel := ""
	timeoutSeconds := 0
	maxAttempts := 0

	if cfg != nil {
		apiKeyPresent = cfg.Gemini.PrimaryKey() != ""
		defaultModel = cfg.Gemini.DefaultModel
		timeoutSeconds = cfg.Gemini.TimeoutSeconds
		maxAttempts = cfg.Gemini.MaxAttempts
	}

	status := "ok"
	if !apiKeyPresent {
		status = "degraded"
	}

	return Component{
		Status: status,
		Detail: map[string]any{
			"api_key_present": apiKeyPresent,
			"default_model":   defaultModel,
			"timeout_seconds": timeoutSeconds,
			"max_attempts":    maxAttempts,
		},
	}
}

func buildFormStoreStatus(ctx context.Context, cfg *config.Config, deepChecks bool) Component {
	reachability := false
	backend := "memory"
	storeEnabled := false
	formCount := 0
	formCountErr := ""

	if cfg != nil {
		storeEnabled = cfg.FormStore.Enabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if storeEnabled && deepChecks {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		store, err := formstore.NewStore(cfg)
		if err != nil {
			formCountErr = err.Error()
		} else {
			defer store.Close()
			if err := store.Ping(checkCtx); err != nil {
				formCountErr = err.Error()
			} else {
				reachability = true
				backend = "valkey"
				count, err := store.Count(checkCtx)
				if err != nil {
					formCountErr = err.Error()
				} else {
					formCount = count
				}
			}
		}
	}

	status := "ok"
	if storeEnabled && deepChecks && !reachability {
		status = "degraded"
	}

	detail := map[string]any{
		"store_enabled":   storeEnabled,
		"store_connected": reachability,
		"backend":         backend,
		"form_count":      formCount,
		"deep_checked":    deepChecks,
	}
	if formCountErr != "" {
		detail["form_count_error"] = formCountErr
	}

	return Component{Status: status, Detail: detail}
}
