package usage

import (
	"context"
	"log/slog"
	"time"
)

// Recorder 는 요청별 토큰 사용량을 일자 집계로 적재한다.
// 사용량 저장 실패는 요청 처리에 영향을 주지 않는다.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder 는 Recorder를 생성한다.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
	}
}

// Record 는 1회 요청의 토큰 사용량을 기록한다.
func (r *Recorder) Record(ctx context.Context, inputTokens int64, outputTokens int64) {
	if r == nil || r.store == nil {
		return
	}
	if inputTokens <= 0 && outputTokens <= 0 {
		return
	}

	if err := r.store.RecordUsage(ctx, inputTokens, outputTokens, 1, time.Time{}); err != nil {
		if r.logger != nil {
			r.logger.Warn("usage_db_save_failed", "err", err)
		}
	}
}

// Close 는 저장소 연결을 정리한다.
func (r *Recorder) Close() {
	if r == nil || r.store == nil {
		return
	}
	r.store.Close()
}
