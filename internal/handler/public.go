package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/render"
	"github.com/kapu/formsmith-server-go/internal/submission"
	"github.com/kapu/formsmith-server-go/internal/usecase/translator"
)

// PublicHandler: 공개 폼 페이지(렌더링 + 제출)를 처리합니다.
// API 키 없이 접근하는 유일한 표면이므로 출력은 전부 렌더러의
// 새니타이즈 경로를 거친다.
type PublicHandler struct {
	cfg         *config.Config
	translator  *translator.Service
	submissions *submission.Store
	renderer    *render.Renderer
	logger      *slog.Logger
}

// NewPublicHandler: 공개 폼 핸들러를 생성합니다.
func NewPublicHandler(
	cfg *config.Config,
	translatorService *translator.Service,
	submissions *submission.Store,
	renderer *render.Renderer,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		cfg:         cfg,
		translator:  translatorService,
		submissions: submissions,
		renderer:    renderer,
		logger:      logger,
	}
}

// RegisterRoutes: 공개 폼 라우트를 등록합니다.
func (h *PublicHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/forms/:id", h.handleView)
	router.POST("/forms/:id", h.handleSubmit)
}

func (h *PublicHandler) handleView(c *gin.Context) {
	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))

	_, schema, err := h.translator.Load(c.Request.Context(), formID)
	if err != nil {
		h.writePublicError(c, err)
		return
	}

	page, err := h.renderer.Form(formID, schema)
	if err != nil {
		h.logger.Warn("form_render_failed", "err", err, "form_id", formID)
		h.writePublicError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *PublicHandler) handleSubmit(c *gin.Context) {
	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))

	_, schema, err := h.translator.Load(c.Request.Context(), formID)
	if err != nil {
		h.writePublicError(c, err)
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		h.writePublicError(c, err)
		return
	}
	values := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		values[key] = c.Request.PostForm.Get(key)
	}

	clean, err := submission.Validate(schema, values, h.cfg.Submission.MaxValueRunes)
	if err != nil {
		h.writePublicError(c, err)
		return
	}

	saved, err := h.submissions.Append(formID, schema, clean)
	if err != nil {
		h.logger.Warn("submission_append_failed", "err", err, "form_id", formID)
		h.writePublicError(c, err)
		return
	}

	page, err := h.renderer.Submitted(formID, schema.Title, saved.ID)
	if err != nil {
		h.writePublicError(c, err)
		return
	}
	c.Data(http.StatusCreated, "text/html; charset=utf-8", page)
}

// writePublicError 는 브라우저 요청에도 JSON 오류 본문을 그대로 쓴다.
// 폼 미존재만 짧은 HTML 404 로 바꾼다.
func (h *PublicHandler) writePublicError(c *gin.Context, err error) {
	if errors.Is(err, formstore.ErrFormNotFound) && c.Request.Method == http.MethodGet {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8",
			[]byte("<!doctype html><html><body><h1>Form not found</h1></body></html>"))
		return
	}
	writeError(c, err)
}
