package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Analysis explains why a rejected answer went wrong so the next pass of
// the loop can avoid repeating it.
type Analysis struct {
	Recap       string `json:"recap"`
	Blame       string `json:"blame"`
	Improvement string `json:"improvement"`
}

var analyzerSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "recap": {
      "type": "string",
      "description": "Recap of the actions taken and the steps conducted"
    },
    "blame": {
      "type": "string",
      "description": "Which action or the step was the root cause of the answer rejection"
    },
    "improvement": {
      "type": "string",
      "description": "Suggested key improvement for the next iteration, do not use bullet points, be concise and hot-take vibe."
    }
  },
  "required": ["recap", "blame", "improvement"],
  "additionalProperties": false
}`)

const analyzerPrompt = `You are an expert at analyzing search and reasoning processes. Your task is to analyze the given sequence of steps and identify what went wrong in the search process.

<rules>
1. The sequence of actions taken
2. The effectiveness of each step
3. The logic between consecutive steps
4. Alternative approaches that could have been taken
5. Signs of getting stuck in repetitive patterns
6. Whether the final answer matches the accumulated information

Analyze the steps and provide detailed feedback following these guidelines:
- In the recap: Summarize key actions chronologically, highlight patterns, and identify where the process started to go wrong
- In the blame: Point to specific steps or patterns that led to the inadequate answer
- In the improvement: Provide actionable suggestions that could have led to a better outcome
</rules>

%s`

// AnalyzeSteps reviews the step diary after a rejected answer.
func (t *Tools) AnalyzeSteps(ctx context.Context, diary []string) (Analysis, error) {
	var analysis Analysis
	prompt := fmt.Sprintf(analyzerPrompt, strings.Join(diary, "\n"))
	if err := t.generate(ctx, "error-analyzer", prompt, analyzerSchema, t.routing.ErrorAnalyzer, &analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}
