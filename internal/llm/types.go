package llm

// Usage 는 토큰 사용량 정보를 담는다.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add 는 두 사용량을 합산한다.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ChatResult 는 LLM 응답과 사용량을 담는다.
type ChatResult struct {
	Text  string
	Usage Usage
}
