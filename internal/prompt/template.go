package prompt

import (
	"fmt"
	"strings"
)

// FormatTemplate 는 {key} 자리를 값으로 치환한다. {{ 와 }} 는 리터럴 중괄호다.
func FormatTemplate(template string, values map[string]string) (string, error) {
	return walkTemplate(template, func(key string) (string, error) {
		value, ok := values[key]
		if !ok {
			return "", fmt.Errorf("missing template value for %q", key)
		}
		return value, nil
	})
}

// ValidateSystemStatic 는 시스템 프롬프트에 템플릿 변수가 없는지 검사한다.
// 시스템 프롬프트는 정적이어야 사용자 입력이 끼어들 수 없다.
func ValidateSystemStatic(name string, system string) error {
	_, err := walkTemplate(system, func(key string) (string, error) {
		return "", fmt.Errorf("system prompt must not contain template variables %q", key)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// walkTemplate 는 템플릿을 스캔하며 변수 자리마다 resolve 를 호출한다.
func walkTemplate(template string, resolve func(key string) (string, error)) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' && c != '}' {
			out.WriteByte(c)
			i++
			continue
		}

		// 이중 중괄호는 리터럴로 내보낸다.
		if i+1 < len(template) && template[i+1] == c {
			out.WriteByte(c)
			i += 2
			continue
		}

		if c == '}' {
			return "", fmt.Errorf("invalid template: unexpected '}'")
		}

		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			return "", fmt.Errorf("invalid template: missing '}'")
		}

		value, err := resolve(template[i+1 : i+1+end])
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		i += end + 2
	}

	return out.String(), nil
}
