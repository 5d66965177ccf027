package otel

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const maxTaskAttrLen = 500

func agentIDAttr(id string) attribute.KeyValue {
	return attribute.String("reflection.agent.id", id)
}

func agentNameAttr(name string) attribute.KeyValue {
	return attribute.String("reflection.agent.name", name)
}

func taskAttr(task string) attribute.KeyValue {
	if len(task) > maxTaskAttrLen {
		task = task[:maxTaskAttrLen] + "..."
	}
	return attribute.String("reflection.task", task)
}

func criteriaAttr(criteria string) attribute.KeyValue {
	return attribute.String("reflection.criteria", criteria)
}

func maxRoundAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.max_round", n)
}

func minRoundAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.min_round", n)
}

func roundAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.round", n)
}

func scoreAttr(score int) attribute.KeyValue {
	return attribute.Int("reflection.score", score)
}

func passAttr(pass bool) attribute.KeyValue {
	return attribute.Bool("reflection.pass", pass)
}

func confidenceAttr(c float64) attribute.KeyValue {
	return attribute.Float64("reflection.confidence", c)
}

func shouldContinueAttr(b bool) attribute.KeyValue {
	return attribute.Bool("reflection.should_continue", b)
}

func strengthsAttr(items []string) attribute.KeyValue {
	return attribute.StringSlice("reflection.strengths", items)
}

func weaknessesAttr(items []string) attribute.KeyValue {
	return attribute.StringSlice("reflection.weaknesses", items)
}

func suggestionsAttr(items []string) attribute.KeyValue {
	return attribute.StringSlice("reflection.suggestions", items)
}

func terminationReasonAttr(reason string) attribute.KeyValue {
	return attribute.String("reflection.termination_reason", reason)
}

func tokenCountAttr(n int64) attribute.KeyValue {
	return attribute.Int64("reflection.token_count", n)
}

func statusAttr(status string) attribute.KeyValue {
	return attribute.String("reflection.status", status)
}

func finalScoreAttr(score int) attribute.KeyValue {
	return attribute.Int("reflection.final_score", score)
}

func totalRoundsAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.total_rounds", n)
}

func totalDurationAttr(ms int64) attribute.KeyValue {
	return attribute.Int64("reflection.total_duration_ms", ms)
}

func averageImprovementRateAttr(rate float64) attribute.KeyValue {
	return attribute.Float64("reflection.average_improvement_rate", rate)
}

func bestRoundAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.best_round", n)
}

func bestScoreAttr(n int) attribute.KeyValue {
	return attribute.Int("reflection.best_score", n)
}

// scoreProgressionAttr renders scores as "6 -> 8 -> 9".
func scoreProgressionAttr(scores []int) attribute.KeyValue {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.Itoa(s)
	}
	return attribute.String("reflection.score_progression", strings.Join(parts, " -> "))
}

func llmModelAttr(model string) attribute.KeyValue {
	return attribute.String("llm.model", model)
}

func llmCallerAttr(caller string) attribute.KeyValue {
	return attribute.String("llm.caller", caller)
}

func llmInputTokensAttr(tokens int64) attribute.KeyValue {
	return attribute.Int64("llm.input_tokens", tokens)
}

func llmOutputTokensAttr(tokens int64) attribute.KeyValue {
	return attribute.Int64("llm.output_tokens", tokens)
}

func eventDataAttr(data string) attribute.KeyValue {
	return attribute.String("event.data", data)
}
