package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/handler/shared"
)

// 패키지 내부 단축 별칭. 핸들러 본문이 shared 접두사로 번잡해지지 않게 한다.
func writeError(c *gin.Context, err error) {
	shared.WriteError(c, err)
}

func bindJSON(c *gin.Context, out any) bool {
	return shared.BindJSON(c, out)
}
