package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kapu/formsmith-server-go/internal/config"
)

// Repository 는 PostgreSQL 기반 토큰 사용량 저장소다.
// 연결은 첫 기록/조회 시점에 지연 생성되고 스키마도 그때 보장된다.
type Repository struct {
	cfg    *config.Config
	logger *slog.Logger
	mu     sync.Mutex
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewRepository 는 usage 저장소를 생성한다. DB 연결은 아직 열지 않는다.
func NewRepository(cfg *config.Config, logger *slog.Logger) *Repository {
	return &Repository{cfg: cfg, logger: logger}
}

// RecordUsage 는 usage_date 행에 토큰/요청 수를 누적한다.
// 같은 날짜 행이 이미 있으면 ON CONFLICT 로 합산하고 version 을 올린다.
func (r *Repository) RecordUsage(
	ctx context.Context,
	inputTokens int64,
	outputTokens int64,
	requestCount int64,
	usageDate time.Time,
) error {
	if requestCount <= 0 && inputTokens <= 0 && outputTokens <= 0 {
		return nil
	}

	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}

	row := TokenUsage{
		UsageDate:    normalizeDate(usageDate),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		RequestCount: requestCount,
	}

	accumulate := map[string]any{
		"input_tokens":  gorm.Expr("token_usage.input_tokens + EXCLUDED.input_tokens"),
		"output_tokens": gorm.Expr("token_usage.output_tokens + EXCLUDED.output_tokens"),
		"request_count": gorm.Expr("token_usage.request_count + EXCLUDED.request_count"),
		"version":       gorm.Expr("token_usage.version + 1"),
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "usage_date"}},
			DoUpdates: clause.Assignments(accumulate),
		}).
		Create(&row).Error
}

// GetDailyUsage 는 특정 날짜의 사용량을 조회한다. 기록이 없으면 nil 을 반환한다.
func (r *Repository) GetDailyUsage(ctx context.Context, usageDate time.Time) (*DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}

	var row TokenUsage
	result := db.WithContext(ctx).Where("usage_date = ?", normalizeDate(usageDate)).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	daily := toDaily(row)
	return &daily, nil
}

// GetRecentUsage 는 최근 days 일의 일별 사용량을 최신순으로 조회한다.
func (r *Repository) GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	var rows []TokenUsage
	if err := db.WithContext(ctx).Order("usage_date desc").Limit(days).Find(&rows).Error; err != nil {
		return nil, err
	}

	usages := make([]DailyUsage, 0, len(rows))
	for _, row := range rows {
		usages = append(usages, toDaily(row))
	}
	return usages, nil
}

// GetTotalUsage 는 최근 days 일 합계를 하나의 DailyUsage 로 반환한다.
func (r *Repository) GetTotalUsage(ctx context.Context, days int) (DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return DailyUsage{}, err
	}
	if days <= 0 {
		days = 30
	}

	var total struct {
		InputTokens  int64
		OutputTokens int64
		RequestCount int64
	}
	query := `
		SELECT
			COALESCE(SUM(input_tokens), 0) AS input_tokens,
			COALESCE(SUM(output_tokens), 0) AS output_tokens,
			COALESCE(SUM(request_count), 0) AS request_count
		FROM token_usage
		WHERE usage_date >= CURRENT_DATE - (?::int)`
	if err := db.WithContext(ctx).Raw(query, days).Scan(&total).Error; err != nil {
		return DailyUsage{}, err
	}

	return DailyUsage{
		UsageDate:    normalizeDate(time.Time{}),
		InputTokens:  total.InputTokens,
		OutputTokens: total.OutputTokens,
		RequestCount: total.RequestCount,
	}, nil
}

// Close 는 DB 연결을 닫는다. 아직 연결 전이면 아무 것도 하지 않는다.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlDB == nil {
		return
	}
	_ = r.sqlDB.Close()
	r.sqlDB = nil
	r.db = nil
}

func (r *Repository) getDB(_ context.Context) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}

	db, err := gorm.Open(
		postgres.Open(r.cfg.Database.DSN()),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if schemaErr := ensureUsageSchema(db); schemaErr != nil {
		return nil, fmt.Errorf("prepare usage db: %w", schemaErr)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get usage db handle: %w", err)
	}
	r.configurePool(sqlDB)

	if r.logger != nil {
		r.logger.Info("usage_db_connected", "host", r.cfg.Database.Host, "name", r.cfg.Database.Name)
	}

	r.db = db
	r.sqlDB = sqlDB
	return db, nil
}

func (r *Repository) configurePool(sqlDB *sql.DB) {
	dbCfg := r.cfg.Database
	sqlDB.SetMaxIdleConns(dbCfg.MinPool)
	sqlDB.SetMaxOpenConns(dbCfg.MaxPool)
	if dbCfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if dbCfg.ConnMaxIdleTimeMinutes > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbCfg.ConnMaxIdleTimeMinutes) * time.Minute)
	}
}

func ensureUsageSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS token_usage (
			id BIGSERIAL PRIMARY KEY,
			usage_date DATE NOT NULL,
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			request_count BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_token_usage_usage_date
			ON token_usage (usage_date)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure token_usage schema: %w", err)
		}
	}
	return nil
}

func toDaily(row TokenUsage) DailyUsage {
	return DailyUsage{
		UsageDate:    row.UsageDate,
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		RequestCount: row.RequestCount,
	}
}

// normalizeDate 는 자정으로 내림하고, 제로 값이면 오늘 날짜를 쓴다.
func normalizeDate(usageDate time.Time) time.Time {
	if usageDate.IsZero() {
		usageDate = time.Now().In(time.Local)
	}
	return time.Date(usageDate.Year(), usageDate.Month(), usageDate.Day(), 0, 0, 0, 0, time.Local)
}
