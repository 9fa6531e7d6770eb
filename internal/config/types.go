package config

import (
	"net"
	"net/url"
	"strconv"
)

// GeminiConfig 는 Gemini 모델 설정이다.
type GeminiConfig struct {
	APIKeys         []string
	DefaultModel    string
	InsightModel    string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
	MaxAttempts     int
}

// PrimaryKey 는 기본 API 키를 반환한다.
func (g GeminiConfig) PrimaryKey() string {
	if len(g.APIKeys) == 0 {
		return ""
	}
	return g.APIKeys[0]
}

// ModelForTask 는 작업 유형별 모델을 반환한다.
func (g GeminiConfig) ModelForTask(task string) string {
	if task == "insight" && g.InsightModel != "" {
		return g.InsightModel
	}
	return g.DefaultModel
}

// TranslatorConfig 는 스키마 변환기 설정이다.
type TranslatorConfig struct {
	MaxDescriptionRunes int
	MaxFields           int
	CacheSize           int
	CacheTTLSeconds     int
}

// FormStoreConfig 는 폼 저장소 연결 설정이다.
type FormStoreConfig struct {
	URL                string
	Enabled            bool
	Required           bool
	DisableCache       bool
	FormTTLHours       int
	CompressionEnabled bool
}

// SubmissionConfig 는 제출 저장소 설정이다.
type SubmissionConfig struct {
	DataDir        string
	MaxValueRunes  int
	InsightMaxRows int
}

// AdminConfig 는 대시보드 관리자 인증 설정이다.
// 공유 비밀번호 1개를 equality 비교로만 검사한다.
type AdminConfig struct {
	Password        string
	JWTSecret       string
	TokenTTLMinutes int
}

// GuardConfig 는 입력 검증 설정이다.
type GuardConfig struct {
	Enabled         bool
	Threshold       float64
	RulepacksDir    string
	CacheMaxSize    int
	CacheTTLSeconds int
}

// LoggingConfig 는 로깅 설정이다.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig 는 HTTP 서버 설정이다.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
	CORSOrigins  []string
}

// HTTPAuthConfig 는 API 키 인증 설정이다.
type HTTPAuthConfig struct {
	APIKey string
}

// HTTPRateLimitConfig 는 요청 제한 설정이다.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// DatabaseConfig 는 토큰 사용량 DB 연결 설정이다.
type DatabaseConfig struct {
	Host                   string
	Port                   int
	Name                   string
	User                   string
	Password               string
	MinPool                int
	MaxPool                int
	ConnMaxLifetimeMinutes int
	ConnMaxIdleTimeMinutes int
}

// DSN 는 DB 접속 문자열을 반환한다.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// Config 는 애플리케이션 전체 설정이다.
type Config struct {
	Gemini        GeminiConfig
	Translator    TranslatorConfig
	FormStore     FormStoreConfig
	Submission    SubmissionConfig
	Admin         AdminConfig
	Guard         GuardConfig
	Logging       LoggingConfig
	HTTP          HTTPConfig
	HTTPAuth      HTTPAuthConfig
	HTTPRateLimit HTTPRateLimitConfig
	Database      DatabaseConfig
}
