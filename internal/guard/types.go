package guard

import "fmt"

// Hit 는 점수에 기여한 규칙 하나를 기록한다.
type Hit struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// Evaluation 은 설명 한 건에 대한 검사 결과다.
type Evaluation struct {
	Score     float64 `json:"score"`
	Hits      []Hit   `json:"hits"`
	Threshold float64 `json:"threshold"`
}

// Malicious 는 누적 점수가 임계값에 도달했는지 반환한다.
func (e Evaluation) Malicious() bool {
	return e.Score >= e.Threshold
}

// BlockedError 는 가드가 차단한 입력에 대한 오류다.
type BlockedError struct {
	Score     float64
	Threshold float64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("description blocked by injection guard (score=%.2f, threshold=%.2f)", e.Score, e.Threshold)
}
