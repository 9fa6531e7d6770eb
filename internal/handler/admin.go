package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/httperror"
	"github.com/kapu/formsmith-server-go/internal/metrics"
	"github.com/kapu/formsmith-server-go/internal/middleware"
	"github.com/kapu/formsmith-server-go/internal/submission"
	"github.com/kapu/formsmith-server-go/internal/usecase/insight"
)

const dashboardRecentLimit = 10

// LoginRequest: 관리자 로그인 요청입니다.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse: 발급된 토큰 응답입니다.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FormSummary: 대시보드 폼 목록의 한 행입니다.
type FormSummary struct {
	FormID      string    `json:"form_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}

// FieldHistogram: 필드 값 분포입니다.
type FieldHistogram struct {
	Field  string         `json:"field"`
	Label  string         `json:"label"`
	Type   string         `json:"type"`
	Counts map[string]int `json:"counts"`
}

// DashboardResponse: 폼 대시보드 응답입니다.
type DashboardResponse struct {
	FormID      string                  `json:"form_id"`
	Title       string                  `json:"title"`
	Submissions int                     `json:"submissions"`
	Histograms  []FieldHistogram        `json:"histograms"`
	Recent      []submission.Submission `json:"recent"`
	Metrics     map[string]float64      `json:"metrics"`
}

// UpdateFormRequest: 폼 편집 요청입니다. 제목과 필드 목록으로 스키마
// 전체를 교체하며, 필드는 번역 결과와 같은 정규화를 다시 거친다.
type UpdateFormRequest struct {
	Title  string            `json:"title"`
	Fields []forms.FieldSpec `json:"fields" binding:"required"`
}

// InsightResponse: AI 분석 응답입니다.
type InsightResponse struct {
	FormID      string `json:"form_id"`
	Title       string `json:"title"`
	Submissions int    `json:"submissions"`
	SampledRows int    `json:"sampled_rows"`
	Insight     string `json:"insight"`
	Model       string `json:"model"`
}

// AdminHandler: 대시보드 API 핸들러입니다.
type AdminHandler struct {
	cfg         *config.Config
	formStore   *formstore.Store
	submissions *submission.Store
	insights    *insight.Service
	metrics     *metrics.Store
	logger      *slog.Logger
}

// NewAdminHandler: 대시보드 핸들러를 생성합니다.
func NewAdminHandler(
	cfg *config.Config,
	formStore *formstore.Store,
	submissions *submission.Store,
	insights *insight.Service,
	metricsStore *metrics.Store,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		cfg:         cfg,
		formStore:   formStore,
		submissions: submissions,
		insights:    insights,
		metrics:     metricsStore,
		logger:      logger,
	}
}

// RegisterRoutes: 대시보드 라우트를 등록합니다. 로그인만 공개이고
// 나머지는 JWT 미들웨어 뒤에 있다.
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/admin/login", h.handleLogin)

	group := router.Group("/api/admin", middleware.AdminAuth(h.cfg))
	group.GET("/forms", h.handleListForms)
	group.PUT("/forms/:id", h.handleUpdateForm)
	group.DELETE("/forms/:id", h.handleDeleteForm)
	group.GET("/forms/:id/dashboard", h.handleDashboard)
	group.POST("/forms/:id/insights", h.handleInsights)
}

func (h *AdminHandler) handleLogin(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	expected := strings.TrimSpace(h.cfg.Admin.Password)
	if expected == "" {
		writeError(c, httperror.NewInternalError("admin password is not configured"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(expected)) != 1 {
		h.logger.Warn("admin_login_rejected", "request_id", middleware.GetRequestID(c))
		writeError(c, httperror.NewUnauthorized(nil))
		return
	}

	token, expiresAt, err := middleware.IssueAdminToken(h.cfg, time.Now())
	if err != nil {
		h.logger.Warn("admin_token_issue_failed", "err", err)
		writeError(c, httperror.NewInternalError("token issuance failed"))
		return
	}

	h.logger.Info("admin_login_ok", "request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AdminHandler) handleListForms(c *gin.Context) {
	records, err := h.formStore.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin_list_forms_failed", "err", err)
		writeError(c, err)
		return
	}

	summaries := make([]FormSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, FormSummary{
			FormID:      record.ID,
			Title:       record.Title,
			Description: record.Description,
			Model:       record.Model,
			CreatedAt:   record.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	c.JSON(http.StatusOK, gin.H{"forms": summaries, "count": len(summaries)})
}

func (h *AdminHandler) handleDashboard(c *gin.Context) {
	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))

	record, err := h.formStore.Get(c.Request.Context(), formID)
	if err != nil {
		writeError(c, err)
		return
	}
	schema, err := forms.UnmarshalSchema(record.Schema)
	if err != nil {
		h.logger.Warn("admin_schema_decode_failed", "err", err, "form_id", formID)
		writeError(c, httperror.NewInternalError("stored schema is unreadable"))
		return
	}

	submissions, err := h.submissions.List(formID)
	if err != nil && !errors.Is(err, submission.ErrNoSubmissions) {
		writeError(c, err)
		return
	}

	recent := submissions
	if len(recent) > dashboardRecentLimit {
		recent = recent[len(recent)-dashboardRecentLimit:]
	}

	c.JSON(http.StatusOK, DashboardResponse{
		FormID:      formID,
		Title:       record.Title,
		Submissions: len(submissions),
		Histograms:  buildHistograms(schema, submissions),
		Recent:      recent,
		Metrics:     h.metrics.Snapshot(),
	})
}

func (h *AdminHandler) handleUpdateForm(c *gin.Context) {
	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))

	record, err := h.formStore.Get(c.Request.Context(), formID)
	if err != nil {
		writeError(c, err)
		return
	}

	var req UpdateFormRequest
	if !bindJSON(c, &req) {
		return
	}

	schema, warnings, err := forms.Normalize(req.Title, req.Fields, h.cfg.Translator.MaxFields)
	if err != nil {
		writeError(c, err)
		return
	}

	payload, err := forms.MarshalExchange(schema)
	if err != nil {
		h.logger.Warn("admin_form_marshal_failed", "err", err, "form_id", formID)
		writeError(c, httperror.NewInternalError("schema encoding failed"))
		return
	}

	record.Title = schema.Title
	record.Schema = payload
	record.Warnings = warnings
	record.UpdatedAt = time.Now().UTC()
	if err := h.formStore.Save(c.Request.Context(), *record); err != nil {
		h.logger.Warn("admin_form_update_failed", "err", err, "form_id", formID)
		writeError(c, err)
		return
	}

	h.logger.Info("admin_form_updated", "request_id", middleware.GetRequestID(c), "form_id", formID)
	c.JSON(http.StatusOK, FormResponse{
		FormID:      record.ID,
		Title:       record.Title,
		Description: record.Description,
		Schema:      schema,
		Warnings:    warnings,
		Model:       record.Model,
		CreatedAt:   record.CreatedAt,
	})
}

func (h *AdminHandler) handleDeleteForm(c *gin.Context) {
	formID := strings.ToLower(strings.TrimSpace(c.Param("id")))

	if _, err := h.formStore.Get(c.Request.Context(), formID); err != nil {
		writeError(c, err)
		return
	}
	if err := h.formStore.Delete(c.Request.Context(), formID); err != nil {
		h.logger.Warn("admin_form_delete_failed", "err", err, "form_id", formID)
		writeError(c, err)
		return
	}

	h.logger.Info("admin_form_deleted", "request_id", middleware.GetRequestID(c), "form_id", formID)
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) handleInsights(c *gin.Context) {
	ctx := c.Request.Context()
	if timeout := time.Duration(h.cfg.Gemini.TimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := h.insights.Summarize(ctx, middleware.GetRequestID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, InsightResponse{
		FormID:      result.FormID,
		Title:       result.Title,
		Submissions: result.Submissions,
		SampledRows: result.SampledRows,
		Insight:     result.Text,
		Model:       result.Model,
	})
}

// buildHistograms 는 값 공간이 유한한 필드(choice, boolean)의 분포를 센다.
func buildHistograms(schema forms.FormSchema, submissions []submission.Submission) []FieldHistogram {
	histograms := make([]FieldHistogram, 0)
	for _, field := range schema.Fields {
		if field.Type != forms.FieldChoice && field.Type != forms.FieldBoolean {
			continue
		}

		counts := make(map[string]int)
		for _, sub := range submissions {
			value := strings.TrimSpace(sub.Values[field.Name])
			if value == "" {
				continue
			}
			counts[value]++
		}

		histograms = append(histograms, FieldHistogram{
			Field:  field.Name,
			Label:  field.Label,
			Type:   string(field.Type),
			Counts: counts,
		})
	}
	return histograms
}
