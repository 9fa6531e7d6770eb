package submission

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kapu/formsmith-server-go/internal/forms"
)

const dateLayout = "2006-01-02"

// FieldIssue 는 단일 필드의 검증 실패 내용이다.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidError 는 제출 값이 스키마 규칙을 어겼을 때 반환된다.
type InvalidError struct {
	Issues []FieldIssue
}

// Error 는 오류 메시지를 반환한다.
func (e *InvalidError) Error() string {
	return fmt.Sprintf("submission failed validation (%d issues)", len(e.Issues))
}

// Validate 는 제출 값을 스키마 규칙으로 검사하고 정제된 값을 반환한다.
// 스키마에 없는 키는 버리고, 비어 있는 선택 필드는 빈 문자열로 남긴다.
func Validate(schema forms.FormSchema, values map[string]string, maxValueRunes int) (map[string]string, error) {
	clean := make(map[string]string, len(schema.Fields))
	issues := make([]FieldIssue, 0)

	for _, field := range schema.Fields {
		value := strings.TrimSpace(lookupValue(values, field.Name))

		if value == "" {
			if field.Required {
				issues = append(issues, FieldIssue{
					Field:   field.Name,
					Message: fmt.Sprintf("%s is required", field.Label),
				})
				continue
			}
			clean[field.Name] = ""
			continue
		}

		if maxValueRunes > 0 && utf8.RuneCountInString(value) > maxValueRunes {
			issues = append(issues, FieldIssue{
				Field:   field.Name,
				Message: fmt.Sprintf("%s exceeds the maximum length of %d characters", field.Label, maxValueRunes),
			})
			continue
		}

		if issue := validateField(field, value); issue != nil {
			issues = append(issues, *issue)
			continue
		}
		clean[field.Name] = value
	}

	if len(issues) > 0 {
		return nil, &InvalidError{Issues: issues}
	}
	return clean, nil
}

// lookupValue 는 필드 이름으로 값을 찾는다. 이름 비교는 대소문자를 무시한다.
func lookupValue(values map[string]string, name string) string {
	if value, ok := values[name]; ok {
		return value
	}
	for key, value := range values {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func validateField(field forms.FieldSpec, value string) *FieldIssue {
	switch field.Type {
	case forms.FieldText, forms.FieldEmail:
		return validateTextField(field, value)
	case forms.FieldNumber:
		return validateNumberField(field, value)
	case forms.FieldChoice:
		return validateChoiceField(field, value)
	case forms.FieldBoolean:
		return validateBooleanField(field, value)
	case forms.FieldDate:
		return validateDateField(field, value)
	default:
		return validateTextField(field, value)
	}
}

func validateTextField(field forms.FieldSpec, value string) *FieldIssue {
	length := utf8.RuneCountInString(value)

	if min, ok := field.Validation.IntRule(forms.RuleMinLength); ok && length < min {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be at least %d characters long", field.Label, min),
		}
	}
	if max, ok := field.Validation.IntRule(forms.RuleMaxLength); ok && length > max {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be at most %d characters long", field.Label, max),
		}
	}

	if pattern, ok := field.Validation.StringRule(forms.RulePattern); ok {
		matched, err := regexp.MatchString(pattern, value)
		if err != nil || !matched {
			if field.Type == forms.FieldEmail {
				return &FieldIssue{
					Field:   field.Name,
					Message: fmt.Sprintf("%s requires a valid email format", field.Label),
				}
			}
			return &FieldIssue{
				Field:   field.Name,
				Message: fmt.Sprintf("%s has an invalid format", field.Label),
			}
		}
	}

	return nil
}

func validateNumberField(field forms.FieldSpec, value string) *FieldIssue {
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be a number", field.Label),
		}
	}

	if field.Validation.BoolRule(forms.RuleInteger) && number != float64(int64(number)) {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be a whole number", field.Label),
		}
	}
	if min, ok := field.Validation.FloatRule(forms.RuleMin); ok && number < min {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be at least %v", field.Label, min),
		}
	}
	if max, ok := field.Validation.FloatRule(forms.RuleMax); ok && number > max {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be at most %v", field.Label, max),
		}
	}

	return nil
}

func validateChoiceField(field forms.FieldSpec, value string) *FieldIssue {
	for _, choice := range field.Validation.Choices() {
		if choice == value {
			return nil
		}
	}
	return &FieldIssue{
		Field:   field.Name,
		Message: fmt.Sprintf("%s must be one of the listed options", field.Label),
	}
}

func validateBooleanField(field forms.FieldSpec, value string) *FieldIssue {
	if _, err := strconv.ParseBool(value); err != nil {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be true or false", field.Label),
		}
	}
	return nil
}

func validateDateField(field forms.FieldSpec, value string) *FieldIssue {
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return &FieldIssue{
			Field:   field.Name,
			Message: fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field.Label),
		}
	}

	if minDate, ok := field.Validation.StringRule(forms.RuleMinDate); ok {
		if bound, err := time.Parse(dateLayout, minDate); err == nil && day.Before(bound) {
			return &FieldIssue{
				Field:   field.Name,
				Message: fmt.Sprintf("%s must not be before %s", field.Label, minDate),
			}
		}
	}
	if maxDate, ok := field.Validation.StringRule(forms.RuleMaxDate); ok {
		if bound, err := time.Parse(dateLayout, maxDate); err == nil && day.After(bound) {
			return &FieldIssue{
				Field:   field.Name,
				Message: fmt.Sprintf("%s must not be after %s", field.Label, maxDate),
			}
		}
	}

	return nil
}
