package render

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText 는 모델이 생성한 텍스트에서 모든 마크업을 제거한다.
// 제목, 라벨, 설명문은 렌더링 전에 반드시 이 경로를 거친다.
// 반환값은 평문이며 엔티티 이스케이프는 템플릿 렌더링 단계에서 한 번만 적용된다.
func SanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	stripped := textSanitizer().Sanitize(trimmed)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
