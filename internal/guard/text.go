package guard

import (
	"encoding/base64"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/mtibben/confusables"
	"golang.org/x/text/unicode/norm"
)

// Base64 후보로 인정하는 최소 길이. 이보다 짧은 시퀀스는 평문으로 본다.
const minBase64Run = 20

// normalizeText 는 규칙 매칭 전에 입력을 정규형으로 만든다.
// 이모지 제거 → homoglyph skeleton → NFKC → 제어 문자 제거 순서다.
// 폼 설명에서 이모지는 차단 사유가 아니라 노이즈이므로 제거만 한다.
// skeleton 은 ASCII 도 접두형으로 바꾸므로(m → rn) ASCII 입력에는 절대
// 적용하지 않는다. 이모지만 제거해도 ASCII 가 되면 그 시점에 끝낸다.
func normalizeText(text string) string {
	if isASCII(text) {
		return stripControlChars(text)
	}

	cleaned := gomoji.RemoveEmojis(text)
	if isASCII(cleaned) {
		return stripControlChars(cleaned)
	}

	skeleton := confusables.Skeleton(cleaned)
	return stripControlChars(norm.NFKC.String(skeleton))
}

func isASCII(text string) bool {
	return !strings.ContainsFunc(text, func(r rune) bool { return r > unicode.MaxASCII })
}

// stripControlChars 는 제어/포맷 문자(zero-width 포함)를 제거한다.
func stripControlChars(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, text)
}

// containsSuspiciousBase64 는 설명에 숨겨진 Base64 페이로드를 탐지한다.
// 충분히 긴 Base64 시퀀스를 추출해 디코딩하고, 결과가 읽을 수 있는
// 텍스트일 때만 의도된 페이로드로 판단한다. 난수나 해시는 통과시킨다.
func containsSuspiciousBase64(input string) bool {
	for _, candidate := range base64Runs(input) {
		decoded, ok := decodeLooseBase64(candidate)
		if ok && isReadableText(decoded) {
			return true
		}
	}
	return false
}

// base64Runs 는 입력에서 Base64 문자셋으로만 이루어진 연속 구간을 추출한다.
func base64Runs(input string) []string {
	var runs []string
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		// 뒤따르는 '=' 패딩까지 포함한다 (최대 2개).
		padded := end
		for padded < len(input) && padded < end+2 && input[padded] == '=' {
			padded++
		}
		if padded-start >= minBase64Run {
			runs = append(runs, input[start:padded])
		}
		start = -1
	}

	for i := 0; i < len(input); i++ {
		if isBase64Byte(input[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(input))

	return runs
}

func isBase64Byte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '-', c == '_':
		return true
	default:
		return false
	}
}

// decodeLooseBase64 는 표준/URL-safe 알파벳을 모두 허용하고 패딩 유무를 무시한다.
func decodeLooseBase64(s string) ([]byte, bool) {
	canonical := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(s, "="))
	decoded, err := base64.RawStdEncoding.DecodeString(canonical)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// isReadableText 는 디코딩 결과가 사람이 읽을 수 있는 텍스트인지 판별한다.
// 유효한 UTF-8 이면서 출력 가능 문자 비율이 90% 를 넘어야 한다.
func isReadableText(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}

	printable, total := 0, 0
	for _, r := range string(data) {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return printable*100 > total*90
}
