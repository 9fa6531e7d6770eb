package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kapu/formsmith-server-go/internal/config"
)

const logFileName = "formsmith.log"

// NewLogger 는 tint 핸들러 기반 slog 로거를 생성하고 기본 로거로 등록한다.
// LogDir 가 비어 있으면 stdout 전용, 지정되면 lumberjack 회전 파일을 함께 쓴다.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	writer, toFile, err := buildWriter(cfg)
	if err != nil {
		return nil, err
	}

	logger := slog.New(tint.NewHandler(writer, &tint.Options{
		Level:      parseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		AddSource:  true,
		NoColor:    toFile,
	}))
	slog.SetDefault(logger)

	if toFile {
		logger.Info("file_logging_enabled", "dir", cfg.LogDir, "file", logFileName)
	}
	return logger, nil
}

func buildWriter(cfg config.LoggingConfig) (io.Writer, bool, error) {
	logDir := strings.TrimSpace(cfg.LogDir)
	if logDir == "" {
		return os.Stdout, false, nil
	}

	if cfg.MaxSizeMB <= 0 || cfg.MaxBackups <= 0 || cfg.MaxAgeDays <= 0 {
		return nil, false, fmt.Errorf(
			"invalid log rotation config: size=%d backups=%d age_days=%d",
			cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays,
		)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, false, fmt.Errorf("create log dir failed: %w", err)
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(os.Stdout, rotated), true, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
