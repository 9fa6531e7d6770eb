package prompt

import (
	"fmt"
	"io/fs"
)

// Bundle 는 특정 도메인의 프롬프트 모음을 관리한다.
type Bundle struct {
	label   string
	prompts map[string]map[string]string
}

// LoadBundle 는 fsys 의 dir 디렉터리에 있는 YAML 프롬프트들을 로드한다.
func LoadBundle(fsys fs.FS, dir string, label string) (*Bundle, error) {
	loaded, err := LoadYAMLDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	return &Bundle{label: label, prompts: loaded}, nil
}

// Prompt 는 이름으로 프롬프트 맵을 조회한다.
func (b *Bundle) Prompt(name string) (map[string]string, error) {
	if b == nil || b.prompts == nil {
		return nil, fmt.Errorf("%s prompts not initialized", b.labelOrDefault())
	}
	promptMap, ok := b.prompts[name]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}
	return promptMap, nil
}

// Field 는 프롬프트 맵에서 필요한 필드를 조회한다.
func Field(data map[string]string, key string, label string) (string, error) {
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("prompt field missing: %s", label)
	}
	return value, nil
}

func (b *Bundle) labelOrDefault() string {
	if b == nil || b.label == "" {
		return "prompt"
	}
	return b.label
}
