package forms

// exchangeSchema 는 모델 구조화 출력용 JSON 스키마다. 스키마 생성과
// 명확화 요청 두 가지 응답 형태를 모두 허용한다.
var exchangeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"contradiction": map[string]any{"type": "boolean"},
		"explanation":   map[string]any{"type": "string"},
		"title":         map[string]any{"type": "string"},
		"fields": map[string]any{
			"type":  "array",
			"items": fieldSchema,
		},
	},
}

var fieldSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":     map[string]any{"type": "string"},
		"label":    map[string]any{"type": "string"},
		"type":     map[string]any{"type": "string"},
		"required": map[string]any{"type": "boolean"},
		"validation": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"min_length": map[string]any{"type": "integer"},
				"max_length": map[string]any{"type": "integer"},
				"pattern":    map[string]any{"type": "string"},
				"min":        map[string]any{"type": "number"},
				"max":        map[string]any{"type": "number"},
				"integer":    map[string]any{"type": "boolean"},
				"choices": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"min_date": map[string]any{"type": "string"},
				"max_date": map[string]any{"type": "string"},
			},
		},
	},
	"required": []string{"label", "type"},
}

// ExchangeSchema: 번역 응답 JSON 스키마를 반환합니다.
func ExchangeSchema() map[string]any {
	return exchangeSchema
}
