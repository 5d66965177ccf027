package reflection

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	MinScore = 1
	MaxScore = 10

	// DefaultConfidence is used when the evaluator omits "confidence".
	DefaultConfidence = 0.5
)

// Evaluation is one validated judgment of a candidate solution.
type Evaluation struct {
	Score            int            `json:"score"`
	Pass             bool           `json:"pass"`
	Strengths        []string       `json:"strengths"`
	Weaknesses       []string       `json:"weaknesses"`
	Suggestions      []string       `json:"suggestions"`
	Dimensions       map[string]int `json:"dimensions,omitempty"`
	Confidence       float64        `json:"confidence"`
	ImprovedSolution string         `json:"improved_solution,omitempty"`
	ShouldContinue   bool           `json:"should_continue"`
}

// IsWellFormed reports whether the score is in range and the evaluation names
// at least one weakness and one suggestion.
func (x *Evaluation) IsWellFormed() bool {
	return x.Score >= MinScore && x.Score <= MaxScore &&
		len(x.Weaknesses) > 0 && len(x.Suggestions) > 0
}

// HasRoomForImprovement reports whether the score is below MaxScore, any
// weakness remains or the evaluator asked to continue.
func (x *Evaluation) HasRoomForImprovement() bool {
	return x.Score < MaxScore || len(x.Weaknesses) > 0 || x.ShouldContinue
}

// MajorIssue returns the first weakness, or "" if there is none.
func (x *Evaluation) MajorIssue() string {
	if len(x.Weaknesses) == 0 {
		return ""
	}
	return x.Weaknesses[0]
}

// ImprovementPriority returns the dimension with the lowest score. Ties are
// broken by name. It returns "" when no dimension was reported.
func (x *Evaluation) ImprovementPriority() string {
	names := make([]string, 0, len(x.Dimensions))
	for name := range x.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)

	var lowest string
	for _, name := range names {
		if lowest == "" || x.Dimensions[name] < x.Dimensions[lowest] {
			lowest = name
		}
	}
	return lowest
}

// WeightedScore returns the weighted mean of the dimensions that have a
// positive weight. It falls back to Score when no dimension matches.
func (x *Evaluation) WeightedScore(weights map[string]float64) float64 {
	var sum, total float64
	for name, w := range weights {
		v, ok := x.Dimensions[name]
		if !ok || w <= 0 {
			continue
		}
		sum += float64(v) * w
		total += w
	}
	if total == 0 {
		return float64(x.Score)
	}
	return sum / total
}

// evaluationSchema constrains types only. The score range is checked after
// decoding so that it reports ErrScoreOutOfRange.
const evaluationSchema = `{
  "type": "object",
  "required": ["score"],
  "properties": {
    "score": {"type": "integer"},
    "pass": {"type": "boolean"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "dimensions": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 1, "maximum": 10}
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "improved_solution": {"type": "string"},
    "should_continue": {"type": "boolean"}
  }
}`

const evaluationSchemaURL = "evaluation.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(evaluationSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(evaluationSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(evaluationSchemaURL)
})

// evaluationPayload mirrors Evaluation with pointers for fields that have
// non-zero defaults. Integers are decoded as float64 since the schema accepts
// integral numbers such as 8.0.
type evaluationPayload struct {
	Score            float64            `json:"score"`
	Pass             bool               `json:"pass"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	Suggestions      []string           `json:"suggestions"`
	Dimensions       map[string]float64 `json:"dimensions"`
	Confidence       *float64           `json:"confidence"`
	ImprovedSolution string             `json:"improved_solution"`
	ShouldContinue   *bool              `json:"should_continue"`
}

// ParseEvaluation decodes and validates an evaluator reply. A surrounding
// markdown code fence is tolerated. Any failure is tagged with
// ErrTagEvaluationContract; nothing is defaulted or clamped.
func ParseEvaluation(raw string) (*Evaluation, error) {
	text := stripCodeFence(raw)

	sch, err := compileSchema()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile evaluation schema")
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, goerr.Wrap(ErrEvaluationDecode, "evaluation is not valid JSON",
			goerr.V("error", err.Error()),
			goerr.V("raw", raw),
			goerr.Tag(ErrTagEvaluationContract))
	}
	if err := sch.Validate(inst); err != nil {
		return nil, goerr.Wrap(ErrEvaluationDecode, "evaluation does not match schema",
			goerr.V("error", err.Error()),
			goerr.V("raw", raw),
			goerr.Tag(ErrTagEvaluationContract))
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, goerr.Wrap(ErrEvaluationDecode, "failed to unmarshal evaluation",
			goerr.V("error", err.Error()),
			goerr.V("raw", raw),
			goerr.Tag(ErrTagEvaluationContract))
	}

	if payload.Score < MinScore || payload.Score > MaxScore {
		return nil, goerr.Wrap(ErrScoreOutOfRange, "evaluation score must be between 1 and 10",
			goerr.V("score", payload.Score),
			goerr.Tag(ErrTagEvaluationContract))
	}

	var dimensions map[string]int
	if payload.Dimensions != nil {
		dimensions = make(map[string]int, len(payload.Dimensions))
		for name, v := range payload.Dimensions {
			dimensions[name] = int(v)
		}
	}

	eval := &Evaluation{
		Score:            int(payload.Score),
		Pass:             payload.Pass,
		Strengths:        payload.Strengths,
		Weaknesses:       payload.Weaknesses,
		Suggestions:      payload.Suggestions,
		Dimensions:       dimensions,
		Confidence:       DefaultConfidence,
		ImprovedSolution: payload.ImprovedSolution,
		ShouldContinue:   true,
	}
	if payload.Confidence != nil {
		eval.Confidence = *payload.Confidence
	}
	if payload.ShouldContinue != nil {
		eval.ShouldContinue = *payload.ShouldContinue
	}
	return eval, nil
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
