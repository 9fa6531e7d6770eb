package di

import (
	"fmt"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/guard"
	"github.com/kapu/formsmith-server-go/internal/handler"
	"github.com/kapu/formsmith-server-go/internal/metrics"
	"github.com/kapu/formsmith-server-go/internal/render"
	"github.com/kapu/formsmith-server-go/internal/server"
	"github.com/kapu/formsmith-server-go/internal/usage"
	"github.com/kapu/formsmith-server-go/internal/usecase/insight"
	"github.com/kapu/formsmith-server-go/internal/usecase/translator"
)

// InitializeApp 은 애플리케이션 의존성을 초기화하고 App 인스턴스를 반환한다.
func InitializeApp() (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	metricsStore := metrics.NewStore()

	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	usageRepository := usage.NewRepository(cfg, logger)
	usageRecorder := ProvideUsageRecorder(usageRepository, logger)

	geminiClient, err := gemini.NewClient(cfg, metricsStore, usageRecorder)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	injectionGuard, err := guard.NewGuard(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}

	formStore, err := formstore.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("form store: %w", err)
	}

	submissionStore, err := ProvideSubmissionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("submission store: %w", err)
	}

	prompts, err := forms.NewPrompts()
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	translatorService := translator.New(cfg, geminiClient, injectionGuard, formStore, prompts, metricsStore, logger)
	insightService := insight.New(cfg, geminiClient, formStore, submissionStore, prompts, logger)

	formsHandler := handler.NewFormsHandler(cfg, translatorService, submissionStore, logger)
	publicHandler := handler.NewPublicHandler(cfg, translatorService, submissionStore, renderer, logger)
	adminHandler := handler.NewAdminHandler(cfg, formStore, submissionStore, insightService, metricsStore, logger)
	usageHandler := handler.NewUsageHandler(cfg, usageRepository, logger)

	router := handler.NewRouter(cfg, logger, formsHandler, publicHandler, adminHandler, usageHandler)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, formStore, usageRepository, usageRecorder), nil
}
