package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// Load 는 환경 변수 기반 설정을 로드한다.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig 는 설정을 로드하고 검증한다.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 는 설정 유효성을 검사한다.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	models := []string{c.Gemini.DefaultModel, c.Gemini.InsightModel}
	for _, model := range models {
		if model == "" {
			continue
		}
		if !isGeminiModel(model) {
			return fmt.Errorf("gemini models only: model=%s", model)
		}
	}
	if c.Gemini.DefaultModel == "" {
		return errors.New("default model required")
	}
	if c.Admin.Password != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin jwt secret required when admin password is set")
	}
	if c.Submission.DataDir == "" {
		return errors.New("submission data dir required")
	}
	return nil
}

// LogEnvStatus 는 환경 설정 상태를 로그로 남긴다.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	envFilePresent := fileExists(".env")
	primaryKey := maskSecret(cfg.Gemini.PrimaryKey())
	logger.Debug(
		"env_status",
		"env_file", envFilePresent,
		"gemini_keys", len(cfg.Gemini.APIKeys),
		"primary_key", primaryKey,
		"model", cfg.Gemini.DefaultModel,
		"timeout", cfg.Gemini.TimeoutSeconds,
		"form_store_url", cfg.FormStore.URL,
		"submission_dir", cfg.Submission.DataDir,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"admin_password", maskSecret(cfg.Admin.Password),
	)

	if len(cfg.Gemini.APIKeys) == 0 {
		logger.Error("env_missing_google_api_key")
	}
	if cfg.Admin.Password == "" {
		logger.Warn("env_missing_admin_password_dashboard_disabled")
	}
}

func buildConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKeys:         parseAPIKeys(),
			DefaultModel:    getEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
			InsightModel:    getEnvString("GEMINI_INSIGHT_MODEL", ""),
			Temperature:     getEnvFloat("GEMINI_TEMPERATURE", 0.2),
			MaxOutputTokens: getEnvInt("GEMINI_MAX_TOKENS", 4096),
			TimeoutSeconds:  getEnvInt("GEMINI_TIMEOUT", 30),
			MaxAttempts:     max(1, getEnvInt("GEMINI_MAX_ATTEMPTS", 3)),
		},
		Translator: TranslatorConfig{
			MaxDescriptionRunes: max(1, getEnvInt("TRANSLATOR_MAX_DESCRIPTION_RUNES", 2000)),
			MaxFields:           max(1, getEnvInt("TRANSLATOR_MAX_FIELDS", 30)),
			CacheSize:           max(1, getEnvNonNegativeInt("TRANSLATOR_CACHE_SIZE", 256)),
			CacheTTLSeconds:     max(1, getEnvNonNegativeInt("TRANSLATOR_CACHE_TTL_SECONDS", 600)),
		},
		FormStore: FormStoreConfig{
			URL:                getEnvString("FORM_STORE_URL", "redis://localhost:6379"),
			Enabled:            getEnvBool("FORM_STORE_ENABLED", false),
			Required:           getEnvBool("FORM_STORE_REQUIRED", false),
			DisableCache:       getEnvBool("FORM_STORE_DISABLE_CACHE", false),
			FormTTLHours:       getEnvNonNegativeInt("FORM_TTL_HOURS", 0),
			CompressionEnabled: getEnvBool("FORM_STORE_COMPRESSION", true),
		},
		Submission: SubmissionConfig{
			DataDir:        getEnvString("SUBMISSION_DATA_DIR", "data/submissions"),
			MaxValueRunes:  max(1, getEnvInt("SUBMISSION_MAX_VALUE_RUNES", 2000)),
			InsightMaxRows: max(1, getEnvInt("INSIGHT_MAX_ROWS", 200)),
		},
		Admin: AdminConfig{
			Password:        getEnvString("ADMIN_PASSWORD", ""),
			JWTSecret:       getEnvString("ADMIN_JWT_SECRET", ""),
			TokenTTLMinutes: max(1, getEnvInt("ADMIN_TOKEN_TTL_MINUTES", 60)),
		},
		Guard: GuardConfig{
			Enabled:         getEnvBool("GUARD_ENABLED", true),
			Threshold:       getEnvFloat("GUARD_THRESHOLD", 0.85),
			RulepacksDir:    getEnvString("RULEPACKS_DIR", ""),
			CacheMaxSize:    getEnvInt("GUARD_CACHE_SIZE", 10000),
			CacheTTLSeconds: getEnvInt("GUARD_CACHE_TTL", 3600),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         getEnvString("HTTP_HOST", "127.0.0.1"),
			Port:         getEnvInt("HTTP_PORT", 8460),
			HTTP2Enabled: getEnvBool("HTTP2_ENABLED", true),
			CORSOrigins:  getEnvStringList("HTTP_CORS_ORIGINS", nil),
		},
		HTTPAuth: HTTPAuthConfig{
			APIKey: getEnvString("HTTP_API_KEY", ""),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: getEnvNonNegativeInt("HTTP_RATE_LIMIT_RPM", 0),
			CacheSize:         max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		Database: DatabaseConfig{
			Host:                   getEnvString("DB_HOST", "localhost"),
			Port:                   getEnvInt("DB_PORT", 5432),
			Name:                   getEnvString("DB_NAME", "formsmith"),
			User:                   getEnvString("DB_USER", "formsmith"),
			Password:               getEnvString("DB_PASSWORD", ""),
			MinPool:                getEnvInt("DB_MIN_POOL", 1),
			MaxPool:                getEnvInt("DB_MAX_POOL", 5),
			ConnMaxLifetimeMinutes: getEnvNonNegativeInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
			ConnMaxIdleTimeMinutes: getEnvNonNegativeInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
	}
}
