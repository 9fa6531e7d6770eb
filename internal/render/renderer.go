package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/kapu/formsmith-server-go/internal/forms"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer 는 폼 스키마를 HTML 페이지로 렌더링한다.
type Renderer struct {
	templates *template.Template
}

// NewRenderer 는 임베드된 템플릿으로 렌더러를 생성한다.
func NewRenderer() (*Renderer, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse form templates: %w", err)
	}
	return &Renderer{templates: templates}, nil
}

type formView struct {
	Title  string
	FormID string
	Fields []fieldView
}

// fieldView 는 템플릿에 넘기는 필드 한 개의 뷰다. 속성 값은 모두 문자열로
// 미리 변환해 템플릿에서 포인터 역참조가 생기지 않게 한다.
type fieldView struct {
	Name      string
	Label     string
	Widget    string
	InputType string
	Required  bool
	Choices   []string
	MinLength string
	MaxLength string
	Pattern   string
	Min       string
	Max       string
	Step      string
}

type submittedView struct {
	Title        string
	FormID       string
	SubmissionID string
}

// Form 은 스키마를 입력 위젯으로 펼친 HTML 폼 페이지를 만든다.
func (r *Renderer) Form(formID string, schema forms.FormSchema) ([]byte, error) {
	view := formView{
		Title:  SanitizeText(schema.Title),
		FormID: formID,
		Fields: make([]fieldView, 0, len(schema.Fields)),
	}
	for _, field := range schema.Fields {
		view.Fields = append(view.Fields, newFieldView(field))
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "form.html", view); err != nil {
		return nil, fmt.Errorf("render form page: %w", err)
	}
	return buf.Bytes(), nil
}

// Submitted 는 제출 완료 페이지를 만든다.
func (r *Renderer) Submitted(formID string, title string, submissionID string) ([]byte, error) {
	view := submittedView{
		Title:        SanitizeText(title),
		FormID:       formID,
		SubmissionID: submissionID,
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "submitted.html", view); err != nil {
		return nil, fmt.Errorf("render submitted page: %w", err)
	}
	return buf.Bytes(), nil
}

// newFieldView 는 필드 유형을 위젯과 HTML 제약 속성으로 매핑한다.
func newFieldView(field forms.FieldSpec) fieldView {
	view := fieldView{
		Name:     field.Name,
		Label:    SanitizeText(field.Label),
		Widget:   "input",
		Required: field.Required,
	}

	switch field.Type {
	case forms.FieldEmail:
		view.InputType = "email"
	case forms.FieldNumber:
		view.InputType = "number"
		view.Step = "any"
		if field.Validation.BoolRule(forms.RuleInteger) {
			view.Step = "1"
		}
	case forms.FieldDate:
		view.InputType = "date"
	case forms.FieldBoolean:
		view.Widget = "checkbox"
	case forms.FieldChoice:
		view.Widget = "select"
		for _, choice := range field.Validation.Choices() {
			view.Choices = append(view.Choices, SanitizeText(choice))
		}
	default:
		view.InputType = "text"
	}

	if value, ok := field.Validation.IntRule(forms.RuleMinLength); ok {
		view.MinLength = strconv.Itoa(value)
	}
	if value, ok := field.Validation.IntRule(forms.RuleMaxLength); ok {
		view.MaxLength = strconv.Itoa(value)
	}
	if value, ok := field.Validation.StringRule(forms.RulePattern); ok {
		view.Pattern = value
	}
	if value, ok := field.Validation.FloatRule(forms.RuleMin); ok {
		view.Min = strconv.FormatFloat(value, 'f', -1, 64)
	}
	if value, ok := field.Validation.FloatRule(forms.RuleMax); ok {
		view.Max = strconv.FormatFloat(value, 'f', -1, 64)
	}
	if field.Type == forms.FieldDate {
		if value, ok := field.Validation.StringRule(forms.RuleMinDate); ok {
			view.Min = value
		}
		if value, ok := field.Validation.StringRule(forms.RuleMaxDate); ok {
			view.Max = value
		}
	}

	return view
}
