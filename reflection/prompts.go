package reflection

import (
	"fmt"
	"strings"
)

// DefaultPromptTemplate is the evaluator system prompt used when a policy does
// not set one.
const DefaultPromptTemplate = `You are an expert evaluator. Your role is to assess solutions based on the provided criteria and give constructive feedback.

**Original Task:**
{{.task}}

**Evaluation Criteria (Business Standards):**
{{.evaluationCriteria}}

**Your Evaluation Guidelines:**

When you receive a solution to evaluate, please provide a detailed assessment in JSON format:

` + "```json" + `
{
  "score": <integer 1-10>,
  "pass": <boolean, whether it meets all critical requirements>,
  "should_continue": <boolean, whether improvement is recommended>,
  "confidence": <float 0.0-1.0, how confident you are in this evaluation>,
  "strengths": ["list of specific strengths"],
  "weaknesses": ["list of specific issues"],
  "suggestions": ["actionable recommendations for improvement"],
  "dimensions": {"<aspect name>": <integer 1-10>}
}
` + "```" + `

**Scoring Guidelines:**
- **9-10**: Excellent, meets all requirements perfectly
- **7-8**: Good, meets most requirements with minor issues
- **5-6**: Adequate, but has significant gaps
- **3-4**: Poor, missing major requirements
- **1-2**: Inadequate, needs complete rework

**Termination Logic:**
- Set ` + "`should_continue: false`" + ` if score >= 8 and all critical requirements are met
- Set ` + "`should_continue: true`" + ` if improvements are still needed

**Important:**
- Provide your evaluation as valid JSON
- Be specific and actionable in your feedback
- Focus on helping improve the solution iteratively
`

const evaluationRequestFormat = "**Solution to Evaluate:**\n\n%s\n\nPlease provide your evaluation in the JSON format specified in the system prompt.\n"

// evaluationRequest builds the user message that carries the candidate solution.
func evaluationRequest(solution string) string {
	return fmt.Sprintf(evaluationRequestFormat, solution)
}

// improvementPrompt builds the user turn that asks the agent to regenerate.
func improvementPrompt(raw string, eval *Evaluation) string {
	var b strings.Builder
	b.WriteString("Based on the evaluation feedback, please improve your solution.\n\n")
	b.WriteString("**Evaluation Feedback:**\n")
	b.WriteString(raw)
	b.WriteString("\n\n")

	writeList(&b, "**Key Issues to Address:**", eval.Weaknesses)
	writeList(&b, "**Improvement Suggestions:**", eval.Suggestions)

	b.WriteString("Please provide an improved solution that addresses these points.")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
