package forms

import "strings"

// FieldType 는 지원하는 입력 필드 유형이다.
type FieldType string

const (
	// FieldText 는 한 줄 텍스트 입력이다.
	FieldText FieldType = "text"
	// FieldEmail 는 이메일 입력이다.
	FieldEmail FieldType = "email"
	// FieldNumber 는 숫자 입력이다.
	FieldNumber FieldType = "number"
	// FieldChoice 는 선택지 입력이다. 비어 있지 않은 choices 규칙이 필수다.
	FieldChoice FieldType = "choice"
	// FieldBoolean 는 체크박스 입력이다.
	FieldBoolean FieldType = "boolean"
	// FieldDate 는 날짜 입력이다.
	FieldDate FieldType = "date"
)

// DefaultEmailPattern 는 email 필드의 기본 패턴 규칙이다.
// 모델이 패턴을 생략해도 email 필드는 항상 이 모양을 갖는다.
const DefaultEmailPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`

var fieldTypes = map[FieldType]struct{}{
	FieldText:    {},
	FieldEmail:   {},
	FieldNumber:  {},
	FieldChoice:  {},
	FieldBoolean: {},
	FieldDate:    {},
}

// ParseFieldType 는 문자열을 필드 유형으로 파싱한다.
func ParseFieldType(value string) (FieldType, bool) {
	parsed := FieldType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := fieldTypes[parsed]
	return parsed, ok
}

// 규칙 키 상수. 필드 유형이 허용하는 키를 결정한다.
const (
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RulePattern   = "pattern"
	RuleChoices   = "choices"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleInteger   = "integer"
	RuleMinDate   = "min_date"
	RuleMaxDate   = "max_date"
)

var legalRuleKeys = map[FieldType]map[string]struct{}{
	FieldText:    {RuleMinLength: {}, RuleMaxLength: {}, RulePattern: {}},
	FieldEmail:   {RuleMinLength: {}, RuleMaxLength: {}, RulePattern: {}},
	FieldNumber:  {RuleMin: {}, RuleMax: {}, RuleInteger: {}},
	FieldChoice:  {RuleChoices: {}},
	FieldBoolean: {},
	FieldDate:    {RuleMinDate: {}, RuleMaxDate: {}},
}

// RuleSet 는 규칙 이름에서 파라미터로의 매핑이다.
// Normalize 를 거친 RuleSet 의 값은 정규형(int, float64, string, []string, bool)이다.
type RuleSet map[string]any

// IntRule 는 정수 파라미터 규칙을 조회한다.
func (r RuleSet) IntRule(key string) (int, bool) {
	raw, ok := r[key]
	if !ok {
		return 0, false
	}
	switch value := raw.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

// FloatRule 는 실수 파라미터 규칙을 조회한다.
func (r RuleSet) FloatRule(key string) (float64, bool) {
	raw, ok := r[key]
	if !ok {
		return 0, false
	}
	switch value := raw.(type) {
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case float64:
		return value, true
	default:
		return 0, false
	}
}

// StringRule 는 문자열 파라미터 규칙을 조회한다.
func (r RuleSet) StringRule(key string) (string, bool) {
	raw, ok := r[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// BoolRule 는 불리언 파라미터 규칙을 조회한다.
func (r RuleSet) BoolRule(key string) bool {
	raw, ok := r[key]
	if !ok {
		return false
	}
	value, ok := raw.(bool)
	return ok && value
}

// Choices 는 choices 규칙의 선택지 목록을 반환한다.
func (r RuleSet) Choices() []string {
	raw, ok := r[RuleChoices]
	if !ok {
		return nil
	}
	switch value := raw.(type) {
	case []string:
		return value
	case []any:
		items := make([]string, 0, len(value))
		for _, item := range value {
			text, ok := item.(string)
			if !ok {
				continue
			}
			text = strings.TrimSpace(text)
			if text != "" {
				items = append(items, text)
			}
		}
		return items
	default:
		return nil
	}
}

// FieldSpec 는 개별 폼 필드의 사양이다.
type FieldSpec struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required"`
	Validation RuleSet   `json:"validation,omitempty"`
}

// FormSchema 는 렌더링 가능한 폼 스키마다.
// 불변 조건: 필드 이름은 대소문자 구분 없이 유일하고, 필드가 1개 이상 존재한다.
type FormSchema struct {
	Title  string      `json:"title"`
	Fields []FieldSpec `json:"fields"`
}

// FieldNames 는 필드 이름 목록을 순서대로 반환한다.
func (s FormSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		names = append(names, field.Name)
	}
	return names
}

// FieldByName 는 이름으로 필드를 조회한다.
func (s FormSchema) FieldByName(name string) (FieldSpec, bool) {
	for _, field := range s.Fields {
		if strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// Clarification 는 스키마 대신 반환되는 재확인 요청이다.
// 설명문은 조언 텍스트로만 취급하며 마크업으로 렌더링하지 않는다.
type Clarification struct {
	Explanation string `json:"explanation"`
}

// Outcome 는 변환기의 결과다. Schema 와 Clarification 중 정확히 하나만 설정된다.
type Outcome struct {
	Schema        *FormSchema    `json:"schema,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// NeedsClarification 는 재확인 요청 여부를 반환한다.
func (o Outcome) NeedsClarification() bool {
	return o.Clarification != nil
}
