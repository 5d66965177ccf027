package refloop

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Termination is an agent owned stop condition. The reflection controller
// checks it before every round and refuses to run an agent that has none.
type Termination interface {
	Name() string
	Terminate(a *Agent) bool
}

// MaxRoundTermination is satisfied once the agent round exceeds its MaxRound.
type MaxRoundTermination struct{}

func NewMaxRoundTermination() *MaxRoundTermination {
	return &MaxRoundTermination{}
}

func (x *MaxRoundTermination) Name() string { return "max_round" }

func (x *MaxRoundTermination) Terminate(a *Agent) bool {
	return a.Round() > a.MaxRound()
}

// DefaultStopMarker is the marker StopMessageTermination looks for when none is given.
const DefaultStopMarker = "TERMINATE"

// StopMessageTermination is satisfied when the agent output contains a marker.
type StopMessageTermination struct {
	marker string
}

// NewStopMessageTermination creates a StopMessageTermination. An empty marker
// means DefaultStopMarker.
func NewStopMessageTermination(marker string) *StopMessageTermination {
	if marker == "" {
		marker = DefaultStopMarker
	}
	return &StopMessageTermination{marker: marker}
}

func (x *StopMessageTermination) Name() string { return "stop_message" }

func (x *StopMessageTermination) Terminate(a *Agent) bool {
	return strings.Contains(a.Output(), x.marker)
}

// ScoreTermination is satisfied when the agent output carries an evaluation
// whose score reaches the target. It is meant for agents that grade their own
// work in their output.
type ScoreTermination struct {
	target      int
	requirePass bool
}

// NewScoreTermination creates a ScoreTermination. target must be in 1..10.
func NewScoreTermination(target int, requirePass bool) (*ScoreTermination, error) {
	if target < 1 || target > 10 {
		return nil, goerr.Wrap(ErrInvalidConfig, "target score must be between 1 and 10",
			goerr.V("target", target),
			goerr.Tag(ErrTagConfig),
		)
	}
	return &ScoreTermination{target: target, requirePass: requirePass}, nil
}

func (x *ScoreTermination) Name() string { return "score" }

func (x *ScoreTermination) Terminate(a *Agent) bool {
	output := a.Output()
	if output == "" {
		return false
	}

	if eval, ok := embeddedEvaluation(output); ok {
		if eval.Score >= x.target && (!x.requirePass || eval.Pass) {
			return true
		}
	}

	// Pass cannot be read from free text, so the fallback only applies without it.
	if x.requirePass {
		return false
	}
	score, ok := ExtractScore(output)
	return ok && score >= x.target
}

type embeddedScore struct {
	Score int  `json:"score"`
	Pass  bool `json:"pass"`
}

func embeddedEvaluation(output string) (*embeddedScore, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var v embeddedScore
	if err := json.Unmarshal([]byte(output[start:end+1]), &v); err != nil {
		return nil, false
	}
	return &v, true
}

const (
	DefaultMaxStaleRounds     = 2
	DefaultMinImprovementRate = 5.0
)

// NoImprovementTermination is satisfied when the score found in the agent
// output stops improving. It keeps state across calls; use one instance per
// run or call Reset between runs.
type NoImprovementTermination struct {
	maxStale int
	minRate  float64

	mu         sync.Mutex
	scores     []int
	staleCount int
}

// NewNoImprovementTermination creates a NoImprovementTermination. It fires after
// maxStale consecutive rounds whose improvement rate (percent) is below minRate.
// Zero values mean DefaultMaxStaleRounds and DefaultMinImprovementRate.
func NewNoImprovementTermination(maxStale int, minRate float64) *NoImprovementTermination {
	if maxStale <= 0 {
		maxStale = DefaultMaxStaleRounds
	}
	if minRate == 0 {
		minRate = DefaultMinImprovementRate
	}
	return &NoImprovementTermination{maxStale: maxStale, minRate: minRate}
}

func (x *NoImprovementTermination) Name() string { return "no_improvement" }

func (x *NoImprovementTermination) Terminate(a *Agent) bool {
	score, ok := ExtractScore(a.Output())
	if !ok {
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.scores) == 0 {
		x.scores = append(x.scores, score)
		return false
	}

	last := x.scores[len(x.scores)-1]
	x.scores = append(x.scores, score)

	if ImprovementRate(last, score) < x.minRate {
		x.staleCount++
		if x.staleCount >= x.maxStale {
			return true
		}
	} else {
		x.staleCount = 0
	}

	return score < last && a.Round() > 2
}

// Scores returns the scores observed so far.
func (x *NoImprovementTermination) Scores() []int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]int(nil), x.scores...)
}

// Reset clears observed scores.
func (x *NoImprovementTermination) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.scores = nil
	x.staleCount = 0
}

// ImprovementRate returns the relative change from last to current in percent.
// A change from zero counts as 100% when current is positive.
func ImprovementRate(last, current int) float64 {
	if last == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(current-last) / float64(last) * 100.0
}

var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"score"\s*:\s*(\d+)`),
	regexp.MustCompile(`(?i)score\s*[：:=]\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*/\s*10`),
	regexp.MustCompile(`(?i)\bscore\b.*?(\d+)`),
}

// ExtractScore finds a 1..10 style score in free text, trying JSON first and
// looser textual forms after.
func ExtractScore(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	for _, p := range scorePatterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v, true
		}
	}
	return 0, false
}
