package shared

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/httperror"
	"github.com/kapu/formsmith-server-go/internal/middleware"
)

// WriteError 는 오류를 API 오류 응답으로 변환해 기록한다.
func WriteError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	status, payload := httperror.Response(err, middleware.GetRequestID(c))
	c.JSON(status, payload)
}

// BindJSON 은 요청 본문을 파싱하고 실패 시 검증 오류 응답까지 기록한다.
func BindJSON(c *gin.Context, out any) bool {
	return bind(c, out, false)
}

// BindJSONAllowEmpty 는 본문이 비어 있어도 기본값으로 통과시킨다.
func BindJSONAllowEmpty(c *gin.Context, out any) bool {
	return bind(c, out, true)
}

func bind(c *gin.Context, out any, allowEmpty bool) bool {
	if c == nil {
		return false
	}

	err := c.ShouldBindJSON(out)
	if err == nil {
		return true
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return true
	}

	WriteError(c, httperror.NewValidationError(err))
	return false
}
