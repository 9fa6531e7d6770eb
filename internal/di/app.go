package di

import (
	"log/slog"
	"net/http"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/usage"
)

// App: 애플리케이션 구성 요소를 묶는다.
type App struct {
	Server          *http.Server
	Logger          *slog.Logger
	Config          *config.Config
	FormStore       *formstore.Store
	UsageRepository *usage.Repository
	UsageRecorder   *usage.Recorder
}

// NewApp: App 인스턴스를 생성합니다.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	formStore *formstore.Store,
	usageRepository *usage.Repository,
	usageRecorder *usage.Recorder,
) *App {
	return &App{
		Server:          server,
		Logger:          logger,
		Config:          cfg,
		FormStore:       formStore,
		UsageRepository: usageRepository,
		UsageRecorder:   usageRecorder,
	}
}

// Close: 앱 리소스를 정리합니다.
func (a *App) Close() {
	if a.FormStore != nil {
		a.FormStore.Close()
	}
	if a.UsageRecorder != nil {
		a.UsageRecorder.Close()
	}
	if a.UsageRepository != nil {
		a.UsageRepository.Close()
	}
}
