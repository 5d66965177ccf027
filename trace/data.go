package trace

// ReflectionData describes a reflection run when it starts.
type ReflectionData struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Task      string `json:"task"`
	Criteria  string `json:"criteria,omitempty"`
	MaxRound  int    `json:"max_round"`
	MinRound  int    `json:"min_round"`
}

// ReflectionResult summarizes a finished reflection run.
type ReflectionResult struct {
	Status                 string  `json:"status"`
	TotalRounds            int     `json:"total_rounds"`
	FinalScore             int     `json:"final_score"`
	BestRound              int     `json:"best_round,omitempty"`
	BestScore              int     `json:"best_score,omitempty"`
	ScoreProgression       []int   `json:"score_progression,omitempty"`
	TotalTokens            int64   `json:"total_tokens"`
	AverageImprovementRate float64 `json:"average_improvement_rate"`
	DurationMS             int64   `json:"duration_ms"`
}

// RoundData holds the evaluation of one round.
type RoundData struct {
	Round             int      `json:"round"`
	Score             int      `json:"score"`
	Pass              bool     `json:"pass"`
	Confidence        float64  `json:"confidence"`
	ShouldContinue    bool     `json:"should_continue"`
	Strengths         []string `json:"strengths,omitempty"`
	Weaknesses        []string `json:"weaknesses,omitempty"`
	Suggestions       []string `json:"suggestions,omitempty"`
	TerminationReason string   `json:"termination_reason,omitempty"`
	TokensUsed        int64    `json:"tokens_used"`
}

// LLMCallData holds data specific to an LLM call span.
type LLMCallData struct {
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	Model        string `json:"model,omitempty"`
	// Caller names who issued the call, e.g. "writer" or "writer-evaluator".
	Caller string `json:"caller,omitempty"`

	Request  *LLMRequest  `json:"request"`
	Response *LLMResponse `json:"response"`
}

// LLMRequest represents the request sent to an LLM.
type LLMRequest struct {
	Format   string    `json:"format"`
	Messages []Message `json:"messages"`
}

// LLMResponse represents the response from an LLM.
type LLMResponse struct {
	Text string `json:"text"`
}

// Message represents a message in the trace (simplified from refloop.Message).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventData holds data specific to an event span.
// Kind is a string defined by the emitter.
// Data is any JSON-serializable value.
type EventData struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
