package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kapu/formsmith-server-go/internal/forms"
	"github.com/kapu/formsmith-server-go/internal/formstore"
	"github.com/kapu/formsmith-server-go/internal/gemini"
	"github.com/kapu/formsmith-server-go/internal/guard"
	"github.com/kapu/formsmith-server-go/internal/submission"
)

// ErrorCode 는 API 오류 코드다.
type ErrorCode string

const (
	// ErrorCodeInternal 는 내부 오류 코드다.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeValidation 는 검증 오류 코드다.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeUnauthorized 는 인증 오류 코드다.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeHTTPRateLimit 는 요청 제한 오류 코드다.
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	// ErrorCodeModelUnavailable 는 모델 호출 실패 코드다.
	ErrorCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	// ErrorCodeModelTimeout 는 모델 타임아웃 코드다.
	ErrorCodeModelTimeout ErrorCode = "MODEL_TIMEOUT"
	// ErrorCodeMalformedResponse 는 모델 응답 파싱 실패 코드다.
	ErrorCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	// ErrorCodeModel 는 모델 설정 오류 코드다.
	ErrorCodeModel ErrorCode = "MODEL_ERROR"
	// ErrorCodeSchemaInvalid 는 스키마 오류 코드다.
	ErrorCodeSchemaInvalid ErrorCode = "SCHEMA_INVALID"
	// ErrorCodeFormNotFound 는 폼 미존재 코드다.
	ErrorCodeFormNotFound ErrorCode = "FORM_NOT_FOUND"
	// ErrorCodeNoSubmissions 는 제출 미존재 코드다.
	ErrorCodeNoSubmissions ErrorCode = "NO_SUBMISSIONS"
	// ErrorCodeGuardBlocked 는 가드 차단 코드다.
	ErrorCodeGuardBlocked ErrorCode = "GUARD_BLOCKED"
	// ErrorCodeStoreUnavailable 는 저장소 비활성 코드다.
	ErrorCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrorCodeInvalidInput 는 입력 오류 코드다.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeMissingField 는 필드 누락 코드다.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
)

// ErrorResponse 는 API 오류 응답 본문이다.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// Error 는 내부 표준 오류 타입이다.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

// Error 는 오류 메시지를 반환한다.
func (e *Error) Error() string {
	return e.Message
}

// Response 는 오류를 HTTP 응답으로 변환한다.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}

	var requestIDPtr *string
	if requestID != "" {
		requestIDPtr = &requestID
	}

	return apiErr.Status, ErrorResponse{
		ErrorCode: string(apiErr.Code),
		ErrorType: apiErr.Type,
		Message:   apiErr.Message,
		RequestID: requestIDPtr,
		Details:   apiErr.Details,
	}
}

// FromError 는 오류를 내부 오류 타입으로 변환한다.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var blocked *guard.BlockedError
	if errors.As(err, &blocked) {
		return NewGuardBlocked(blocked.Score, blocked.Threshold)
	}

	var invalid *submission.InvalidError
	if errors.As(err, &invalid) {
		return NewSubmissionInvalid(invalid)
	}

	if errors.Is(err, formstore.ErrFormNotFound) {
		return NewFormNotFound("")
	}

	if errors.Is(err, formstore.ErrStoreDisabled) {
		return NewStoreUnavailable()
	}

	if errors.Is(err, submission.ErrNoSubmissions) {
		return NewNoSubmissions()
	}

	if errors.Is(err, forms.ErrMalformedResponse) {
		return NewMalformedResponse(err.Error())
	}

	if errors.Is(err, forms.ErrEmptySchema) {
		return NewSchemaInvalid(err.Error())
	}

	if errors.Is(err, gemini.ErrInvalidModel) {
		return NewModelError("Invalid model")
	}

	if errors.Is(err, gemini.ErrMissingAPIKey) {
		return NewModelUnavailable("Missing Gemini API key")
	}

	if errors.Is(err, gemini.ErrModelUnavailable) {
		return NewModelUnavailable("Model request failed")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewModelTimeout("Model request timed out")
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(err)
	}

	return NewInternalError(err.Error())
}

// NewInternalError 는 내부 오류를 생성한다.
func NewInternalError(message string) *Error {
	return &Error{
		Code:    ErrorCodeInternal,
		Status:  http.StatusInternalServerError,
		Type:    "InternalError",
		Message: message,
		Details: nil,
	}
}

// NewValidationError 는 요청 본문 검증 오류를 생성한다.
func NewValidationError(err error) *Error {
	return &Error{
		Code:    ErrorCodeValidation,
		Status:  http.StatusUnprocessableEntity,
		Type:    "ValidationError",
		Message: "Input validation failed",
		Details: validationDetails(err),
	}
}

// NewSubmissionInvalid 는 제출 값 검증 오류를 생성한다.
func NewSubmissionInvalid(invalid *submission.InvalidError) *Error {
	issues := make([]map[string]any, 0, len(invalid.Issues))
	for _, issue := range invalid.Issues {
		issues = append(issues, map[string]any{
			"field":   issue.Field,
			"message": issue.Message,
		})
	}
	return &Error{
		Code:    ErrorCodeValidation,
		Status:  http.StatusUnprocessableEntity,
		Type:    "SubmissionInvalidError",
		Message: invalid.Error(),
		Details: map[string]any{"errors": issues},
	}
}

// NewMissingField 는 누락 필드 오류를 생성한다.
func NewMissingField(field string) *Error {
	return &Error{
		Code:    ErrorCodeMissingField,
		Status:  http.StatusBadRequest,
		Type:    "MissingFieldError",
		Message: fmt.Sprintf("Field '%s' required", field),
		Details: map[string]any{"field": field},
	}
}

// NewInvalidInput 는 입력 오류를 생성한다.
func NewInvalidInput(message string) *Error {
	return &Error{
		Code:    ErrorCodeInvalidInput,
		Status:  http.StatusBadRequest,
		Type:    "InvalidInputError",
		Message: message,
		Details: nil,
	}
}

// NewUnauthorized 는 인증 오류를 생성한다.
func NewUnauthorized(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Type:    "UnauthorizedError",
		Message: "Invalid credentials",
		Details: details,
	}
}

// NewRateLimitExceeded 는 요청 제한 오류를 생성한다.
func NewRateLimitExceeded(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeHTTPRateLimit,
		Status:  http.StatusTooManyRequests,
		Type:    "HTTPRateLimitExceededError",
		Message: "Rate limit exceeded",
		Details: details,
	}
}

// NewGuardBlocked 는 가드 차단 오류를 생성한다.
func NewGuardBlocked(score float64, threshold float64) *Error {
	return &Error{
		Code:    ErrorCodeGuardBlocked,
		Status:  http.StatusBadRequest,
		Type:    "GuardBlockedError",
		Message: fmt.Sprintf("Input blocked by injection guard (score=%.2f, threshold=%.2f)", score, threshold),
		Details: map[string]any{"score": score, "threshold": threshold},
	}
}

// NewFormNotFound 는 폼 미존재 오류를 생성한다.
func NewFormNotFound(formID string) *Error {
	details := map[string]any(nil)
	message := "Form not found"
	if formID != "" {
		message = fmt.Sprintf("Form '%s' not found", formID)
		details = map[string]any{"form_id": formID}
	}
	return &Error{
		Code:    ErrorCodeFormNotFound,
		Status:  http.StatusNotFound,
		Type:    "FormNotFoundError",
		Message: message,
		Details: details,
	}
}

// NewNoSubmissions 는 제출 미존재 오류를 생성한다.
func NewNoSubmissions() *Error {
	return &Error{
		Code:    ErrorCodeNoSubmissions,
		Status:  http.StatusNotFound,
		Type:    "NoSubmissionsError",
		Message: "No submissions recorded for this form",
		Details: nil,
	}
}

// NewStoreUnavailable 는 저장소 비활성 오류를 생성한다.
func NewStoreUnavailable() *Error {
	return &Error{
		Code:    ErrorCodeStoreUnavailable,
		Status:  http.StatusServiceUnavailable,
		Type:    "StoreUnavailableError",
		Message: "Form store is disabled",
		Details: nil,
	}
}

// NewSchemaInvalid 는 스키마 오류를 생성한다.
func NewSchemaInvalid(message string) *Error {
	return &Error{
		Code:    ErrorCodeSchemaInvalid,
		Status:  http.StatusUnprocessableEntity,
		Type:    "SchemaInvalidError",
		Message: message,
		Details: nil,
	}
}

// NewMalformedResponse 는 모델 응답 파싱 실패 오류를 생성한다.
func NewMalformedResponse(message string) *Error {
	return &Error{
		Code:    ErrorCodeMalformedResponse,
		Status:  http.StatusBadGateway,
		Type:    "MalformedResponseError",
		Message: message,
		Details: nil,
	}
}

// NewModelError 는 모델 설정 오류를 생성한다.
func NewModelError(message string) *Error {
	return &Error{
		Code:    ErrorCodeModel,
		Status:  http.StatusBadRequest,
		Type:    "ModelError",
		Message: message,
		Details: nil,
	}
}

// NewModelTimeout 는 모델 타임아웃 오류를 생성한다.
func NewModelTimeout(message string) *Error {
	return &Error{
		Code:    ErrorCodeModelTimeout,
		Status:  http.StatusGatewayTimeout,
		Type:    "ModelTimeoutError",
		Message: message,
		Details: nil,
	}
}

// NewModelUnavailable 는 모델 호출 실패 오류를 생성한다.
func NewModelUnavailable(message string) *Error {
	return &Error{
		Code:    ErrorCodeModelUnavailable,
		Status:  http.StatusServiceUnavailable,
		Type:    "ModelUnavailableError",
		Message: message,
		Details: nil,
	}
}

// FieldError 는 필드 오류 상세 정보다.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(err error) map[string]any {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, validationErr := range validationErrors {
			fields = append(fields, FieldError{
				Field:   validationErr.Field(),
				Message: validationErr.Error(),
				Value:   validationErr.Value(),
			})
		}
		return map[string]any{"errors": fields}
	}

	return map[string]any{
		"errors": []FieldError{
			{
				Field:   "body",
				Message: err.Error(),
				Value:   nil,
			},
		},
	}
}
