package claude_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop/llm/claude"
)

func TestExtractJSONFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain object",
			input:    `{"score": 8, "pass": true}`,
			expected: `{"score": 8, "pass": true}`,
		},
		{
			name:     "json code block",
			input:    "Here is my evaluation:\n```json\n{\"score\": 8}\n```\nThanks.",
			expected: `{"score": 8}`,
		},
		{
			name:     "code block without language",
			input:    "```\n{\"score\": 3}\n```",
			expected: `{"score": 3}`,
		},
		{
			name:     "braces in string literals",
			input:    `{"weaknesses": ["unbalanced '}' in output"]}`,
			expected: `{"weaknesses": ["unbalanced '}' in output"]}`,
		},
		{
			name:     "escaped quotes",
			input:    `{"suggestions": ["say \"hi {there}\""]}`,
			expected: `{"suggestions": ["say \"hi {there}\""]}`,
		},
		{
			name:     "prose around object",
			input:    `My verdict: {"score": 6, "dimensions": {"clarity": 5}} as requested.`,
			expected: `{"score": 6, "dimensions": {"clarity": 5}}`,
		},
		{
			name:     "array first",
			input:    `[{"id": 1}] and {"items": [1, 2]}`,
			expected: `[{"id": 1}]`,
		},
		{
			name:     "object first",
			input:    `{"items": [1, 2]} and [{"id": 1}]`,
			expected: `{"items": [1, 2]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Equal(t, claude.ExtractJSONFromResponse(tt.input), tt.expected)
		})
	}
}

func TestExtractJSONFromResponse_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no JSON", input: "The solution looks fine", expected: "The solution looks fine"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace", input: "  \n\t ", expected: ""},
		{name: "truncated object", input: `{"score": 7, "weaknesses": ["unfinished`, expected: `{"score": 7, "weaknesses": ["unfinished`},
		{name: "mismatched brackets", input: `{"score": 7]`, expected: `{"score": 7]`},
		{name: "balanced but invalid", input: `note {score: 7}`, expected: `{score: 7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Equal(t, claude.ExtractJSONFromResponse(tt.input), tt.expected)
		})
	}
}
