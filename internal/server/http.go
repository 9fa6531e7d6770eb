package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kapu/formsmith-server-go/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 120 * time.Second
)

// NewHTTPServer 는 설정에 따라 HTTP/1.1 또는 h2c 서버를 생성한다.
// 폼 제출 본문은 작으므로 읽기 타임아웃은 헤더 기준으로만 건다.
func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	var handler http.Handler = router
	if cfg.HTTP.HTTP2Enabled {
		handler = h2c.NewHandler(router, &http2.Server{})
	}

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
