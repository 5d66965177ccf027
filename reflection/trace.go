package reflection

// ReflectionStartEvent is recorded when a run begins.
type ReflectionStartEvent struct {
	AgentName string `json:"agent_name"`
	MaxRound  int    `json:"max_round"`
	MinRound  int    `json:"min_round"`
	Strict    bool   `json:"strict,omitempty"`
}

// EvaluationParsedEvent is recorded after an evaluator reply passed validation.
type EvaluationParsedEvent struct {
	Round          int     `json:"round"`
	Score          int     `json:"score"`
	Pass           bool    `json:"pass"`
	ShouldContinue bool    `json:"should_continue"`
	Confidence     float64 `json:"confidence"`
	WellFormed     bool    `json:"well_formed"`
}

// TerminationEvent is recorded when the loop decides to stop.
type TerminationEvent struct {
	Round  int    `json:"round"`
	Reason string `json:"reason"`
	Score  int    `json:"score,omitempty"`
}

// RegeneratedEvent is recorded after the agent produced an improved output.
type RegeneratedEvent struct {
	Round        int `json:"round"`
	OutputLength int `json:"output_length"`
}

// ReflectionCompleteEvent is recorded when the history reached a terminal status.
type ReflectionCompleteEvent struct {
	Status      Status `json:"status"`
	TotalRounds int    `json:"total_rounds"`
	FinalScore  int    `json:"final_score"`
}

// Termination reasons reported in TerminationEvent and trace.RoundData.
const (
	ReasonScoreAchieved   = "score_achieved"
	ReasonNoImprovement   = "no_improvement"
	ReasonGoodEnough      = "good_enough"
	ReasonMaxRounds       = "max_rounds"
	ReasonAgentTerminated = "agent_terminated"
	ReasonError           = "error"
)
