package guard

// Guard 는 설명 검사 인터페이스다. 번역 서비스는 이 계약만 가정한다.
type Guard interface {
	Evaluate(input string) Evaluation
	EnsureSafe(input string) error
	IsMalicious(input string) bool
}

var _ Guard = (*InjectionGuard)(nil)
