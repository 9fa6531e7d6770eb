//go:build wireinject

package di

import (
	"github.com/google/wire"

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

func InitializeApp() (*App, error) {
	wire.Build(
		config.ProvideConfig,
		ProvideLogger,
		ProvideSubmissionStore,
		ProvideUsageRecorder,
		metrics.NewStore,
		usage.NewRepository,
		wire.Bind(new(usage.Store), new(*usage.Repository)),
		guard.NewGuard,
		wire.Bind(new(guard.Guard), new(*guard.InjectionGuard)),
		gemini.NewClient,
		wire.Bind(new(gemini.LLM), new(*gemini.Client)),
		formstore.NewStore,
		forms.NewPrompts,
		render.NewRenderer,
		translator.New,
		insight.New,
		handler.NewFormsHandler,
		handler.NewPublicHandler,
		handler.NewAdminHandler,
		handler.NewUsageHandler,
		handler.NewRouter,
		server.NewHTTPServer,
		NewApp,
	)
	return nil, nil
}
