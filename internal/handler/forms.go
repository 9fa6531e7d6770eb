package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/middleware"
	"github.com/kapu/formsmith-server-go/internal/submission"
	"github.com/kapu/formsmith-server-go/internal/usecase/translator"
)

// TranslateRequest: 폼 생성 요청 본문입니다.
type TranslateRequest struct {
	Description string `json:"description" binding:"required"`
}

// TranslateResponse: 폼 생성 응답입니다. Schema 와 Clarification 중
// 정확히 하나만 채워진다.
type TranslateResponse struct {
	FormID        string               `json:"form_id"`
	Status        string               `json:"status"`
	Schema        *forms.FormSchema    `json:"schema,omitempty"`
	Clarification *forms.Clarification `json:"clarification,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	Model         string               `json:"model"`
	Cached        bool                 `json:"cached"`
	FormURL       string               `json:"form_url,omitempty"`
}

// FormResponse: 저장된 폼 조회 응답입니다.
type FormResponse struct {
	FormID      string           `json:"form_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Schema      forms.FormSchema `json:"schema"`
	Warnings    []string         `json:"warnings,omitempty"`
	Model       string           `json:"model"`
	CreatedAt   time.Time        `json:"created_at"`
}

// SubmitRequest: 제출 요청 본문입니다.
type SubmitRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// SubmitResponse: 제출 응답입니다.
type SubmitResponse struct {
	SubmissionID string    `json:"submission_id"`
	FormID       string    `json:"form_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// FormsHandler: 폼 생성/조회/제출 API 핸들러입니다.
type FormsHandler struct {
	cfg         *config.Config
	translator  *translator.Service
	submissions *submission.Store
	logger      *slog.Logger
}

// NewFormsHandler: 폼 핸들러를 생성합니다.
func NewFormsHandler(
	cfg *config.Config,
	translatorService *translator.Service,
	submissions *submission.Store,
	logger *slog.Logger,
) *FormsHandler {
	return &FormsHandler{
		cfg:         cfg,
		translator:  translatorService,
		submissions: submissions,
		logger:      logger,
	}
}

// RegisterRoutes: 폼 라우트를 등록합니다.
func (h *FormsHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/forms")
	group.POST("", h.handleTranslate)
	group.GET("/:id", h.handleGet)
	group.POST("/:id/submissions", h.handleSubmit)
}

func (h *FormsHandler) handleTranslate(c *gin.Context) {
	var req TranslateRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.translator.Translate(ctx, middleware.GetRequestID(c), req.Description)
	if err != nil {
		writeError(c, err)
		return
	}

	response := TranslateResponse{
		FormID:   result.FormID,
		Model:    result.Model,
		Cached:   result.Cached,
		Warnings: result.Outcome.Warnings,
	}
	if result.Outcome.NeedsClarification() {
		response.Status = "clarification"
		response.Clarification = result.Outcome.Clarification
	} else {
		response.Status = "schema"
		response.Schema = result.Outcome.Schema
		response.FormURL = "/forms/" + result.FormID
	}

	c.JSON(http.StatusOK, response)
}

func (h *FormsHandler) handleGet(c *gin.Context) {
	record, schema, err := h.translator.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, FormResponse{
		FormID:      record.ID,
		Title:       record.Title,
		Description: record.Description,
		Schema:      schema,
		Warnings:    record.Warnings,
		Model:       record.Model,
		CreatedAt:   record.CreatedAt,
	})
}

func (h *FormsHandler) handleSubmit(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req) {
		return
	}

	_, schema, err := h.translator.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	clean, err := submission.Validate(schema, req.Values, h.cfg.Submission.MaxValueRunes)
	if err != nil {
		writeError(c, err)
		return
	}

	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))
	saved, err := h.submissions.Append(formID, schema, clean)
	if err != nil {
		h.logger.Warn("submission_append_failed", "err", err, "form_id", formID)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitResponse{
		SubmissionID: saved.ID,
		FormID:       saved.FormID,
		SubmittedAt:  saved.SubmittedAt,
	})
}

func (h *FormsHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(h.cfg.Gemini.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
