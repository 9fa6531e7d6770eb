package forms

import (
	"embed"
	"fmt"

	"github.com/kapu/formsmith-server-go/internal/prompt"
)

//go:embed prompts/*.yml
var promptsFS embed.FS

// Prompts 는 폼 생성과 응답 분석 프롬프트 모음이다.
type Prompts struct {
	bundle *prompt.Bundle
}

// NewPrompts 는 임베디드 프롬프트를 로드한다.
func NewPrompts() (*Prompts, error) {
	bundle, err := prompt.LoadBundle(promptsFS, "prompts", "forms")
	if err != nil {
		return nil, fmt.Errorf("load forms prompts: %w", err)
	}
	return &Prompts{bundle: bundle}, nil
}

// GenerateSystem 은 스키마 생성 시스템 프롬프트를 반환한다.
func (p *Prompts) GenerateSystem() (string, error) {
	data, err := p.bundle.Prompt("generate")
	if err != nil {
		return "", err
	}
	return prompt.Field(data, "system", "generate.system")
}

// GenerateUser 는 스키마 생성 유저 프롬프트를 반환한다.
func (p *Prompts) GenerateUser(description string) (string, error) {
	data, err := p.bundle.Prompt("generate")
	if err != nil {
		return "", err
	}
	template, err := prompt.Field(data, "user", "generate.user")
	if err != nil {
		return "", err
	}
	formatted, err := prompt.FormatTemplate(template, map[string]string{"description": description})
	if err != nil {
		return "", fmt.Errorf("format generate.user: %w", err)
	}
	return formatted, nil
}

// RepairUser 는 파싱 실패 후 재시도 유저 프롬프트를 반환한다.
func (p *Prompts) RepairUser(description string, parseErr string) (string, error) {
	data, err := p.bundle.Prompt("repair")
	if err != nil {
		return "", err
	}
	template, err := prompt.Field(data, "user", "repair.user")
	if err != nil {
		return "", err
	}
	formatted, err := prompt.FormatTemplate(template, map[string]string{
		"description": description,
		"error":       parseErr,
	})
	if err != nil {
		return "", fmt.Errorf("format repair.user: %w", err)
	}
	return formatted, nil
}

// InsightSystem 은 응답 분석 시스템 프롬프트를 반환한다.
func (p *Prompts) InsightSystem() (string, error) {
	data, err := p.bundle.Prompt("insight")
	if err != nil {
		return "", err
	}
	return prompt.Field(data, "system", "insight.system")
}

// InsightUser 는 응답 분석 유저 프롬프트를 반환한다.
func (p *Prompts) InsightUser(title string, fields string, total string, rows string) (string, error) {
	data, err := p.bundle.Prompt("insight")
	if err != nil {
		return "", err
	}
	template, err := prompt.Field(data, "user", "insight.user")
	if err != nil {
		return "", err
	}
	formatted, err := prompt.FormatTemplate(template, map[string]string{
		"title":  title,
		"fields": fields,
		"total":  total,
		"rows":   rows,
	})
	if err != nil {
		return "", fmt.Errorf("format insight.user: %w", err)
	}
	return formatted, nil
}
