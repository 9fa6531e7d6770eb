package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAMLDir 는 디렉터리의 *.yml / *.yaml 프롬프트 파일을 모두 로드한다.
// 파일명(확장자 제외)이 프롬프트 이름이 된다.
func LoadYAMLDir(fsys fs.FS, dir string) (map[string]map[string]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob prompt dir: %w", err)
		}
		paths = append(paths, matches...)
	}

	prompts := make(map[string]map[string]string, len(paths))
	for _, filePath := range paths {
		mapping, err := LoadYAMLMapping(fsys, filePath)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
		prompts[name] = mapping
	}
	return prompts, nil
}

// LoadYAMLMapping 는 프롬프트 YAML 파일 하나를 문자열 맵으로 로드한다.
// system 키가 있으면 정적 프롬프트인지 검증한다.
func LoadYAMLMapping(fsys fs.FS, filePath string) (map[string]string, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt yaml: %w", err)
	}

	mapping := stringifyValues(raw)
	if system := strings.TrimSpace(mapping["system"]); system != "" {
		if err := ValidateSystemStatic(filePath, system); err != nil {
			return nil, err
		}
	}
	return mapping, nil
}

func stringifyValues(raw map[string]any) map[string]string {
	mapping := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			mapping[key] = ""
			continue
		}
		mapping[key] = fmt.Sprint(value)
	}
	return mapping
}
