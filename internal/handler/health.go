package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/health"
)

// RegisterHealthRoutes: 상태 확인 라우트를 등록합니다.
func RegisterHealthRoutes(router *gin.Engine, cfg *config.Config) {
	router.GET("/healthz", func(c *gin.Context) {
		// Liveness: 외부 의존성 상태로 다운 판정되지 않도록 shallow 로 유지한다.
		payload := health.Collect(c.Request.Context(), cfg, false)
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/healthz/ready", func(c *gin.Context) {
		payload := health.Collect(c.Request.Context(), cfg, true)
		status := http.StatusOK
		if payload.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
