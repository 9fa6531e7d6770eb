package forms

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

// Exchange 는 모델과 주고받는 고정 직렬화 형태다.
// 두 가지 모양이 같은 채널로 돌아온다:
//   - {title, fields: [...]}
//   - {contradiction: true, explanation}
type Exchange struct {
	Contradiction bool        `json:"contradiction,omitempty"`
	Explanation   string      `json:"explanation,omitempty"`
	Title         string      `json:"title,omitempty"`
	Fields        []FieldSpec `json:"fields,omitempty"`
}

// ExtractJSONObject 는 모델 출력에서 JSON 오브젝트 본문만 추출한다.
// 마크다운 펜스와 앞뒤 잡텍스트를 제거한다.
func ExtractJSONObject(text string) string {
	trimmed := strings.TrimSpace(text)

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}

// ParseExchangeText 는 모델의 자유 텍스트 응답을 Exchange 로 파싱한다.
func ParseExchangeText(text string) (*Exchange, error) {
	payload := ExtractJSONObject(text)
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode exchange json: %w", err)
	}
	return ParseExchange(raw)
}

// ParseExchange 는 디코딩된 맵을 Exchange 로 파싱한다.
// 타입이 어긋난 값은 약한 변환으로 흡수하고, 모양 자체가 어긋나면 오류를 반환한다.
func ParseExchange(payload map[string]any) (*Exchange, error) {
	if payload == nil {
		return nil, fmt.Errorf("nil exchange payload")
	}

	var exchange Exchange
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &exchange,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("new exchange decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode exchange: %w", err)
	}

	if exchange.Contradiction {
		if strings.TrimSpace(exchange.Explanation) == "" {
			return nil, fmt.Errorf("contradiction without explanation")
		}
		return &exchange, nil
	}

	if len(exchange.Fields) == 0 {
		return nil, fmt.Errorf("exchange has neither fields nor contradiction")
	}
	return &exchange, nil
}

// MarshalExchange 는 검증된 스키마를 교환 형태 JSON 으로 직렬화한다.
func MarshalExchange(schema FormSchema) ([]byte, error) {
	data, err := json.Marshal(Exchange{Title: schema.Title, Fields: schema.Fields})
	if err != nil {
		return nil, fmt.Errorf("marshal exchange: %w", err)
	}
	return data, nil
}

// UnmarshalSchema 는 교환 형태 JSON 을 스키마로 복원한다.
// 저장소에서 읽은 스키마도 같은 경로로 파싱해 암묵적 신뢰를 피한다.
func UnmarshalSchema(data []byte) (FormSchema, error) {
	exchange, err := ParseExchangeText(string(data))
	if err != nil {
		return FormSchema{}, err
	}
	if exchange.Contradiction {
		return FormSchema{}, fmt.Errorf("stored payload is a clarification, not a schema")
	}

	// JSON 숫자는 float64 로 돌아오므로 규칙 값을 정규형으로 되돌린다.
	fields := make([]FieldSpec, len(exchange.Fields))
	for i, field := range exchange.Fields {
		field.Validation = canonicalizeRules(field.Type, field.Validation)
		fields[i] = field
	}
	return FormSchema{Title: exchange.Title, Fields: fields}, nil
}
