package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger 는 요청 단위 액세스 로그를 남긴다.
// 헬스체크와 메트릭 스크레이프는 성공 시 로그를 남기지 않는다.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return func(c *gin.Context) {
		startedAt := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && len(c.Errors) == 0 && isScrapePath(path) {
			return
		}

		fields := []any{
			"request_id", GetRequestID(c),
			"method", method,
			"path", path,
			"status", status,
			"latency", time.Since(startedAt),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		logger.Log(c.Request.Context(), levelForStatus(status), "http_request", fields...)
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

func isScrapePath(path string) bool {
	switch path {
	case "/healthz", "/healthz/ready", "/metrics":
		return true
	}
	return false
}
