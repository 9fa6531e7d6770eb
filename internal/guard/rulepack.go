package guard

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/mtibben/confusables"
	"gopkg.in/yaml.v3"
)

//go:embed rulepacks/*.yml
var defaultRulepacksFS embed.FS

type rawRulepack struct {
	Version   int       `yaml:"version"`
	Threshold float64   `yaml:"threshold"`
	Rules     []rawRule `yaml:"rules"`
}

type rawRule struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Pattern string   `yaml:"pattern"`
	Phrases []string `yaml:"phrases"`
	Weight  float64  `yaml:"weight"`
}

type regexRule struct {
	ID      string
	Pattern *regexp.Regexp
	// Folded 는 패턴 리터럴을 confusables skeleton 으로 접은 변형이다.
	// homoglyph 입력은 정규화 단계에서 skeleton 형태가 되므로(m → rn)
	// 원본 패턴만으로는 매칭되지 않는다. 원본과 동일하면 nil 이다.
	Folded *regexp.Regexp
	Weight float64
}

type compiledPack struct {
	Threshold     float64
	RegexRules    []regexRule
	PhraseMatcher *ahocorasick.Matcher
	Phrases       []string
	PhraseWeights map[string]float64
	// FoldedMatcher/FoldedPhrases 는 skeleton 으로 접은 구절 변형이다.
	// FoldedPhrases[i] 는 가중치 조회용 원본 구절을 가리킨다.
	FoldedMatcher *ahocorasick.Matcher
	FoldedPhrases []string
}

// loadRulepacks 는 dir 의 룰팩을 로드한다. dir 이 비었거나 룰팩 파일이
// 없으면 임베디드 기본 룰팩으로 폴백한다.
func loadRulepacks(dir string, logger *slog.Logger) []compiledPack {
	if dir != "" {
		packs := loadRulepacksFS(os.DirFS(dir), ".", logger)
		if len(packs) > 0 {
			return packs
		}
		if logger != nil {
			logger.Warn("rulepacks_dir_empty", "dir", dir)
		}
	}
	return loadRulepacksFS(defaultRulepacksFS, "rulepacks", logger)
}

func loadRulepacksFS(fsys fs.FS, dir string, logger *slog.Logger) []compiledPack {
	paths := findRulepackFiles(fsys, dir)
	if len(paths) == 0 {
		return nil
	}

	packs := make([]compiledPack, 0, len(paths))
	for _, filePath := range paths {
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			if logger != nil {
				logger.Warn("rulepack_read_failed", "path", filePath, "err", err)
			}
			continue
		}

		var raw rawRulepack
		err = yaml.Unmarshal(data, &raw)
		if err != nil {
			if logger != nil {
				logger.Warn("rulepack_parse_failed", "path", filePath, "err", err)
			}
			continue
		}

		pack, err := compileRulepack(raw, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("rulepack_compile_failed", "path", filePath, "err", err)
			}
			continue
		}
		packs = append(packs, pack)
	}

	return packs
}

func findRulepackFiles(fsys fs.FS, dir string) []string {
	var files []string
	patterns := []string{"*.yml", "*.yaml"}
	for _, pattern := range patterns {
		matches, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files
}

func compileRulepack(raw rawRulepack, logger *slog.Logger) (compiledPack, error) {
	if raw.Version == 0 {
		raw.Version = 1
	}
	if raw.Threshold == 0 {
		raw.Threshold = 0.7
	}

	var regexes []regexRule
	phrases := make([]string, 0)
	phraseWeights := make(map[string]float64)

	for _, rule := range raw.Rules {
		switch strings.ToLower(strings.TrimSpace(rule.Type)) {
		case "regex":
			if rule.ID == "" || rule.Pattern == "" {
				return compiledPack{}, fmt.Errorf("invalid regex rule")
			}
			pattern, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				if logger != nil {
					logger.Warn("rulepack_regex_invalid", "rule_id", rule.ID, "err", err)
				}
				continue
			}
			regexes = append(regexes, regexRule{
				ID:      rule.ID,
				Pattern: pattern,
				Folded:  foldPattern(rule.Pattern, logger, rule.ID),
				Weight:  rule.Weight,
			})
		case "phrases":
			if rule.ID == "" || len(rule.Phrases) == 0 {
				return compiledPack{}, fmt.Errorf("invalid phrases rule")
			}
			for _, phrase := range rule.Phrases {
				value := strings.ToLower(phrase)
				phrases = append(phrases, value)
				phraseWeights[value] = rule.Weight
			}
		default:
			return compiledPack{}, fmt.Errorf("unknown rule type: %s", rule.Type)
		}
	}

	var matcher *ahocorasick.Matcher
	if len(phrases) > 0 {
		patterns := make([][]byte, 0, len(phrases))
		for _, phrase := range phrases {
			patterns = append(patterns, []byte(phrase))
		}
		matcher = ahocorasick.NewMatcher(patterns)
	}

	foldedMatcher, foldedPhrases := foldPhrases(phrases)

	return compiledPack{
		Threshold:     raw.Threshold,
		RegexRules:    regexes,
		PhraseMatcher: matcher,
		Phrases:       phrases,
		PhraseWeights: phraseWeights,
		FoldedMatcher: foldedMatcher,
		FoldedPhrases: foldedPhrases,
	}, nil
}

// foldPattern 은 패턴의 skeleton 변형을 컴파일한다. 원본과 같거나
// 접은 결과가 정규식으로 성립하지 않으면 nil 을 반환한다.
func foldPattern(pattern string, logger *slog.Logger, ruleID string) *regexp.Regexp {
	folded := confusables.Skeleton(pattern)
	if folded == pattern {
		return nil
	}
	compiled, err := regexp.Compile("(?i)" + folded)
	if err != nil {
		if logger != nil {
			logger.Warn("rulepack_folded_regex_invalid", "rule_id", ruleID, "err", err)
		}
		return nil
	}
	return compiled
}

// foldPhrases 는 skeleton 형태가 원본과 달라지는 구절만 모아 별도
// 매처를 만든다. 반환 슬라이스의 각 항목은 가중치 조회용 원본 구절이다.
func foldPhrases(phrases []string) (*ahocorasick.Matcher, []string) {
	var patterns [][]byte
	var originals []string
	for _, phrase := range phrases {
		folded := strings.ToLower(confusables.Skeleton(phrase))
		if folded == phrase {
			continue
		}
		patterns = append(patterns, []byte(folded))
		originals = append(originals, phrase)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return ahocorasick.NewMatcher(patterns), originals
}
