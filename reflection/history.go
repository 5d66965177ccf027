package reflection

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/refloop"
)

// Status is the state of a reflection run.
type Status string

const (
	StatusInProgress             Status = "IN_PROGRESS"
	StatusCompletedSuccess       Status = "COMPLETED_SUCCESS"
	StatusCompletedMaxRounds     Status = "COMPLETED_MAX_ROUNDS"
	StatusCompletedNoImprovement Status = "COMPLETED_NO_IMPROVEMENT"
	StatusFailed                 Status = "FAILED"

	// StatusInterrupted is reserved for callers; the controller closes
	// every failed run, including canceled ones, as StatusFailed.
	StatusInterrupted Status = "INTERRUPTED"
)

// IsTerminal reports whether s is a final status.
func (s Status) IsTerminal() bool {
	return s != StatusInProgress && s != ""
}

// Round is the record of one evaluate-then-maybe-regenerate cycle.
type Round struct {
	Number int `json:"round"`

	// EvaluationInput is the solution that was judged, before any regeneration.
	EvaluationInput     string      `json:"evaluation_input"`
	EvaluationOutputRaw string      `json:"evaluation_output_raw"`
	Evaluation          *Evaluation `json:"evaluation"`

	Duration time.Duration `json:"duration"`

	// TokensUsed is the tokens consumed during this round only.
	TokensUsed int64 `json:"tokens_used"`
	// CumulativeTokens is the agent's running total when the round was recorded.
	CumulativeTokens int64 `json:"cumulative_tokens"`
}

// Score returns the evaluation score, or 0 if the round has no evaluation.
func (r Round) Score() int {
	if r.Evaluation == nil {
		return 0
	}
	return r.Evaluation.Score
}

// History is the append-only record of one reflection run. The controller
// owns it while running; afterwards it is read only.
type History struct {
	mu sync.RWMutex

	agentID            string
	agentName          string
	initialInput       string
	evaluationCriteria string

	rounds    []Round
	startTime time.Time
	endTime   time.Time
	status    Status

	now func() time.Time
}

func newHistory(agent Agent, criteria string, now func() time.Time) *History {
	return &History{
		agentID:            agent.ID(),
		agentName:          agent.Name(),
		initialInput:       agent.Input(),
		evaluationCriteria: criteria,
		startTime:          now(),
		status:             StatusInProgress,
		now:                now,
	}
}

func (h *History) addRound(r Round) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rounds = append(h.rounds, r)
}

// complete sets the terminal status. Only the first call has an effect.
func (h *History) complete(status Status) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.IsTerminal() {
		return false
	}
	h.status = status
	h.endTime = h.now()
	return true
}

// fail forces StatusFailed even after complete.
func (h *History) fail() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusFailed
	h.endTime = h.now()
}

func (h *History) AgentID() string            { return h.agentID }
func (h *History) AgentName() string          { return h.agentName }
func (h *History) InitialInput() string       { return h.initialInput }
func (h *History) EvaluationCriteria() string { return h.evaluationCriteria }
func (h *History) StartTime() time.Time       { return h.startTime }

func (h *History) EndTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.endTime
}

func (h *History) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Rounds returns a copy of the recorded rounds.
func (h *History) Rounds() []Round {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Round(nil), h.rounds...)
}

// TotalRounds returns the number of recorded rounds.
func (h *History) TotalRounds() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rounds)
}

// TotalTokensUsed returns the sum of per-round token deltas.
func (h *History) TotalTokensUsed() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var total int64
	for _, r := range h.rounds {
		total += r.TokensUsed
	}
	return total
}

// FinalScore returns the score of the last round, or 0 if no round was recorded.
func (h *History) FinalScore() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rounds) == 0 {
		return 0
	}
	return h.rounds[len(h.rounds)-1].Score()
}

// AverageImprovementRate returns the fraction (0..1) of adjacent round pairs
// whose score strictly increased. It is 0 with fewer than two rounds.
func (h *History) AverageImprovementRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rounds) < 2 {
		return 0
	}
	var improved int
	for i := 1; i < len(h.rounds); i++ {
		if h.rounds[i].Score() > h.rounds[i-1].Score() {
			improved++
		}
	}
	return float64(improved) / float64(len(h.rounds)-1)
}

// BestRound returns the first round with the highest score.
func (h *History) BestRound() (Round, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rounds) == 0 {
		return Round{}, false
	}
	best := h.rounds[0]
	for _, r := range h.rounds[1:] {
		if r.Score() > best.Score() {
			best = r
		}
	}
	return best, true
}

// HasContinuousImprovement reports whether every round scored strictly higher
// than the one before. It is false with fewer than two rounds.
func (h *History) HasContinuousImprovement() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rounds) < 2 {
		return false
	}
	for i := 1; i < len(h.rounds); i++ {
		if h.rounds[i].Score() <= h.rounds[i-1].Score() {
			return false
		}
	}
	return true
}

// ScoreProgression returns the score of each round in order.
func (h *History) ScoreProgression() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	scores := make([]int, len(h.rounds))
	for i, r := range h.rounds {
		scores[i] = r.Score()
	}
	return scores
}

// TotalDuration returns the run time. A run that has not ended is measured
// until now.
func (h *History) TotalDuration() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.endTime.IsZero() {
		return h.now().Sub(h.startTime)
	}
	return h.endTime.Sub(h.startTime)
}

// Summary returns a human readable report of the run.
func (h *History) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reflection Summary for %s\n", h.agentName)
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Task: %s\n", h.initialInput)
	fmt.Fprintf(&b, "Total Rounds: %d\n", h.TotalRounds())
	fmt.Fprintf(&b, "Total Duration: %s\n", h.TotalDuration())
	fmt.Fprintf(&b, "Total Tokens: %d\n", h.TotalTokensUsed())
	fmt.Fprintf(&b, "Final Score: %d\n", h.FinalScore())
	fmt.Fprintf(&b, "Average Improvement Rate: %.2f%%\n", h.AverageImprovementRate()*100)
	fmt.Fprintf(&b, "Status: %s\n", h.Status())

	rounds := h.Rounds()
	if len(rounds) > 0 {
		b.WriteString("\nRound Details:\n")
		for i, r := range rounds {
			var rate float64
			if i > 0 {
				rate = refloop.ImprovementRate(rounds[i-1].Score(), r.Score())
			}
			fmt.Fprintf(&b, "  Round %d: Score=%d, Improvement=%.1f%%, Time=%s\n",
				r.Number, r.Score(), rate, r.Duration)
		}
	}
	return b.String()
}

type historyJSON struct {
	AgentID                string    `json:"agent_id"`
	AgentName              string    `json:"agent_name"`
	InitialInput           string    `json:"initial_input"`
	EvaluationCriteria     string    `json:"evaluation_criteria,omitempty"`
	Status                 Status    `json:"status"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time,omitzero"`
	Rounds                 []Round   `json:"rounds"`
	TotalTokensUsed        int64     `json:"total_tokens_used"`
	FinalScore             int       `json:"final_score"`
	AverageImprovementRate float64   `json:"average_improvement_rate"`
}

// MarshalJSON encodes the history with its derived analytics.
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyJSON{
		AgentID:                h.agentID,
		AgentName:              h.agentName,
		InitialInput:           h.initialInput,
		EvaluationCriteria:     h.evaluationCriteria,
		Status:                 h.Status(),
		StartTime:              h.startTime,
		EndTime:                h.EndTime(),
		Rounds:                 h.Rounds(),
		TotalTokensUsed:        h.TotalTokensUsed(),
		FinalScore:             h.FinalScore(),
		AverageImprovementRate: h.AverageImprovementRate(),
	})
}
