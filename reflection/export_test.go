package reflection

import "time"

var (
	ImprovementPrompt = improvementPrompt
	EvaluationRequest = evaluationRequest
)

func NewTestHistory(agentID, agentName, input string, now func() time.Time) *History {
	return &History{
		agentID:      agentID,
		agentName:    agentName,
		initialInput: input,
		startTime:    now(),
		status:       StatusInProgress,
		now:          now,
	}
}

func (h *History) AddRound(r Round) {
	h.addRound(r)
}

func (h *History) Complete(status Status) bool {
	return h.complete(status)
}
