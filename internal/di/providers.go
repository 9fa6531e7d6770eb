package di

import (
	"fmt"
	"log/slog"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/logging"
	"github.com/kapu/formsmith-server-go/internal/submission"
	"github.com/kapu/formsmith-server-go/internal/usage"
)

// ProvideLogger: 로거를 구성해 반환합니다.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideSubmissionStore: 제출 저장소를 구성해 반환합니다.
func ProvideSubmissionStore(cfg *config.Config) (*submission.Store, error) {
	store, err := submission.NewStore(cfg.Submission.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init submission store: %w", err)
	}
	return store, nil
}

// ProvideUsageRecorder: 사용량 레코더를 구성해 반환합니다.
func ProvideUsageRecorder(repository *usage.Repository, logger *slog.Logger) *usage.Recorder {
	return usage.NewRecorder(repository, logger)
}
