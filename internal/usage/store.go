package usage

import (
	"context"
	"time"
)

// Store 는 토큰 사용량 저장소 인터페이스다.
// 핸들러와 Recorder 는 이 인터페이스만 의존하므로 테스트에서 stub 을 주입한다.
type Store interface {
	RecordUsage(
		ctx context.Context,
		inputTokens int64,
		outputTokens int64,
		requestCount int64,
		usageDate time.Time,
	) error
	GetDailyUsage(ctx context.Context, usageDate time.Time) (*DailyUsage, error)
	GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error)
	GetTotalUsage(ctx context.Context, days int) (DailyUsage, error)
	Close()
}

var _ Store = (*Repository)(nil)
