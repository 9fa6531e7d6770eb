package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrEmptySchema 는 자동 보정 후에도 필드가 하나도 남지 않을 때 반환된다.
	ErrEmptySchema = errors.New("schema has no usable fields")
	// ErrMalformedResponse 는 재시도 후에도 모델 출력을 파싱하지 못했을 때 반환된다.
	ErrMalformedResponse = errors.New("model response is not a valid schema exchange")
)

// Normalize 는 파싱된 스키마를 검증하고 렌더링 가능한 형태로 보정한다.
// 실패보다 부분 성공을 우선한다: 고칠 수 있는 문제는 경고와 함께 고치고,
// 빈 스키마만 오류로 승격한다.
//
// 보정 규칙:
//   - 이름 누락 → 라벨에서 snake_case 생성
//   - 대소문자 무시 중복 이름 → 뒤의 필드 제거 + 경고
//   - 미지원/누락 유형 → text 강등 + 경고
//   - choices 없는 choice → text 강등 + 경고
//   - email 은 pattern 규칙이 없으면 기본 이메일 패턴 부여
//   - 유형이 허용하지 않는 규칙 키 제거
func Normalize(title string, fields []FieldSpec, maxFields int) (FormSchema, []string, error) {
	warnings := make([]string, 0)

	if maxFields > 0 && len(fields) > maxFields {
		warnings = append(warnings, fmt.Sprintf("field list truncated to %d entries", maxFields))
		fields = fields[:maxFields]
	}

	seen := make(map[string]struct{}, len(fields))
	normalized := make([]FieldSpec, 0, len(fields))

	for _, field := range fields {
		field.Label = strings.TrimSpace(field.Label)
		field.Name = strings.TrimSpace(field.Name)
		if field.Name == "" {
			field.Name = snakeCase(field.Label)
		}
		if field.Name == "" {
			warnings = append(warnings, "dropped field without name or label")
			continue
		}
		if field.Label == "" {
			field.Label = labelFromName(field.Name)
		}

		lower := strings.ToLower(field.Name)
		if _, dup := seen[lower]; dup {
			warnings = append(warnings, fmt.Sprintf("dropped duplicate field %q", field.Name))
			continue
		}
		seen[lower] = struct{}{}

		fieldType, ok := ParseFieldType(string(field.Type))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("field %q type %q downgraded to text", field.Name, field.Type))
			fieldType = FieldText
		}
		field.Type = fieldType

		field.Validation = canonicalizeRules(fieldType, field.Validation)

		if fieldType == FieldChoice && len(field.Validation.Choices()) == 0 {
			warnings = append(warnings, fmt.Sprintf("field %q has no choices, downgraded to text", field.Name))
			field.Type = FieldText
			field.Validation = canonicalizeRules(FieldText, nil)
		}

		applyDefaultRules(&field)
		normalized = append(normalized, field)
	}

	if len(normalized) == 0 {
		return FormSchema{}, warnings, ErrEmptySchema
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Form"
	}

	return FormSchema{Title: title, Fields: normalized}, warnings, nil
}

// canonicalizeRules 는 유형이 허용하는 규칙만 남기고 값 표현을 정규형으로 바꾼다.
func canonicalizeRules(fieldType FieldType, rules RuleSet) RuleSet {
	legal := legalRuleKeys[fieldType]
	result := make(RuleSet)

	for key := range legal {
		switch key {
		case RuleMinLength, RuleMaxLength:
			if value, ok := rules.IntRule(key); ok && value >= 0 {
				result[key] = value
			}
		case RuleMin, RuleMax:
			if value, ok := rules.FloatRule(key); ok {
				result[key] = value
			}
		case RulePattern:
			if value, ok := rules.StringRule(key); ok && validPattern(value) {
				result[key] = value
			}
		case RuleChoices:
			if choices := rules.Choices(); len(choices) > 0 {
				result[key] = choices
			}
		case RuleInteger:
			if rules.BoolRule(key) {
				result[key] = true
			}
		case RuleMinDate, RuleMaxDate:
			if value, ok := rules.StringRule(key); ok && strings.TrimSpace(value) != "" {
				result[key] = strings.TrimSpace(value)
			}
		}
	}

	return result
}

func applyDefaultRules(field *FieldSpec) {
	if field.Validation == nil {
		field.Validation = make(RuleSet)
	}
	if field.Type == FieldEmail {
		if _, ok := field.Validation.StringRule(RulePattern); !ok {
			field.Validation[RulePattern] = DefaultEmailPattern
		}
	}
}

func validPattern(pattern string) bool {
	if strings.TrimSpace(pattern) == "" {
		return false
	}
	_, err := regexp.Compile(pattern)
	return err == nil
}

// snakeCase 는 라벨에서 필드 이름을 생성한다 ("T-Shirt Size" → "t_shirt_size").
func snakeCase(label string) string {
	var builder strings.Builder
	builder.Grow(len(label))
	lastUnderscore := true

	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				builder.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(builder.String(), "_")
}

func labelFromName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
