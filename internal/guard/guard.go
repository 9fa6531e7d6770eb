package guard

import (
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kapu/formsmith-server-go/internal/cache"
	"github.com/kapu/formsmith-server-go/internal/config"
)

const fallbackThreshold = 0.7

// InjectionGuard 는 폼 설명을 모델에 보내기 전에 검사한다.
// 설명은 그대로 프롬프트에 들어가므로 주입 시도를 먼저 걸러낸다.
// 같은 설명에 대한 반복 평가는 TTL 캐시와 singleflight 로 합쳐진다.
type InjectionGuard struct {
	cfg    *config.Config
	logger *slog.Logger
	packs  []compiledPack
	cache  *cache.TTLCache[string, Evaluation]
	group  singleflight.Group
}

// NewGuard 는 설정된 룰팩 디렉토리(없으면 내장 기본 룰팩)로 가드를 생성한다.
func NewGuard(cfg *config.Config, logger *slog.Logger) (*InjectionGuard, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	guard := &InjectionGuard{
		cfg:    cfg,
		logger: logger,
		cache: cache.NewTTLCache[string, Evaluation](
			cfg.Guard.CacheMaxSize,
			time.Duration(cfg.Guard.CacheTTLSeconds)*time.Second,
		),
	}

	if cfg.Guard.Enabled {
		guard.packs = loadRulepacks(cfg.Guard.RulepacksDir, logger)
		if logger != nil {
			logger.Info("guard_ready", "packs", len(guard.packs), "threshold", guard.threshold())
		}
	}

	return guard, nil
}

// Evaluate 는 입력을 평가한다. 가드 비활성 시 임계값을 +Inf 로 두어 항상 통과시킨다.
func (g *InjectionGuard) Evaluate(input string) Evaluation {
	if g == nil || g.cfg == nil || !g.cfg.Guard.Enabled {
		return Evaluation{Threshold: math.Inf(1)}
	}

	if cached, ok := g.cache.Get(input); ok {
		return cached
	}

	value, _, _ := g.group.Do(input, func() (any, error) {
		result := g.inspect(input)
		g.cache.Set(input, result)
		return result, nil
	})

	if evaluation, ok := value.(Evaluation); ok {
		return evaluation
	}
	return Evaluation{Threshold: g.threshold()}
}

// EnsureSafe 는 위험 입력에 대해 BlockedError 를 반환한다.
func (g *InjectionGuard) EnsureSafe(input string) error {
	evaluation := g.Evaluate(input)
	if evaluation.Malicious() {
		return &BlockedError{Score: evaluation.Score, Threshold: evaluation.Threshold}
	}
	return nil
}

// IsMalicious 는 입력이 차단 대상인지 반환한다.
func (g *InjectionGuard) IsMalicious(input string) bool {
	return g.Evaluate(input).Malicious()
}

// threshold 는 설정값 > 룰팩 최대 임계값 > 기본값 순으로 결정한다.
func (g *InjectionGuard) threshold() float64 {
	if g.cfg != nil && g.cfg.Guard.Threshold > 0 {
		return g.cfg.Guard.Threshold
	}

	highest := 0.0
	for _, pack := range g.packs {
		if pack.Threshold > highest {
			highest = pack.Threshold
		}
	}
	if highest > 0 {
		return highest
	}
	return fallbackThreshold
}

func (g *InjectionGuard) inspect(input string) Evaluation {
	threshold := g.threshold()

	// 인코딩된 페이로드는 규칙 매칭을 우회하므로 즉시 차단한다.
	if containsSuspiciousBase64(input) {
		if g.logger != nil {
			g.logger.Warn("guard_base64_payload_blocked", "input", trimForLog(input))
		}
		return Evaluation{
			Score:     threshold,
			Hits:      []Hit{{ID: "base64_payload", Weight: threshold}},
			Threshold: threshold,
		}
	}

	normalized := normalizeText(input)
	lowered := strings.ToLower(normalized)

	var score float64
	var hits []Hit
	for _, pack := range g.packs {
		for _, rule := range pack.RegexRules {
			// 원본과 접힌 변형 중 하나라도 맞으면 한 번만 센다.
			if rule.Pattern.MatchString(normalized) ||
				(rule.Folded != nil && rule.Folded.MatchString(normalized)) {
				score += rule.Weight
				hits = append(hits, Hit{ID: rule.ID, Weight: rule.Weight})
			}
		}
		score, hits = matchPhrases(pack, lowered, score, hits)
	}

	return Evaluation{Score: score, Hits: hits, Threshold: threshold}
}

func matchPhrases(pack compiledPack, lowered string, score float64, hits []Hit) (float64, []Hit) {
	seen := make(map[string]bool)

	record := func(phrase string) {
		if seen[phrase] {
			return
		}
		seen[phrase] = true
		weight := pack.PhraseWeights[phrase]
		if weight <= 0 {
			return
		}
		score += weight
		hits = append(hits, Hit{ID: "phrase:" + phrase, Weight: weight})
	}

	if pack.PhraseMatcher != nil {
		for _, index := range pack.PhraseMatcher.MatchThreadSafe([]byte(lowered)) {
			if index < 0 || index >= len(pack.Phrases) {
				continue
			}
			record(pack.Phrases[index])
		}
	}
	if pack.FoldedMatcher != nil {
		for _, index := range pack.FoldedMatcher.MatchThreadSafe([]byte(lowered)) {
			if index < 0 || index >= len(pack.FoldedPhrases) {
				continue
			}
			record(pack.FoldedPhrases[index])
		}
	}
	return score, hits
}

const trimLogRunes = 50

func trimForLog(value string) string {
	value = strings.TrimSpace(value)
	count := 0
	for i := range value {
		if count == trimLogRunes {
			return value[:i]
		}
		count++
	}
	return value
}
