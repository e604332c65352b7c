package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Evaluation is the verdict on whether an answer actually answers the
// question.
type Evaluation struct {
	IsDefinitive bool   `json:"is_definitive"`
	Reasoning    string `json:"reasoning"`
}

var evaluatorSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "is_definitive": {
      "type": "boolean",
      "description": "Whether the answer provides a definitive response without uncertainty or 'I don't know' type statements"
    },
    "reasoning": {
      "type": "string",
      "description": "Explanation of why the answer is or isn't definitive"
    }
  },
  "required": ["is_definitive", "reasoning"],
  "additionalProperties": false
}`)

const evaluatorPrompt = `You are an evaluator of answer definitiveness. Analyze if the given answer provides a definitive response or not.

Core Evaluation Criterion:
- Definitiveness: "I don't know", "lack of information", "doesn't exist", "not sure" or highly uncertain/ambiguous responses are **not** definitive, must return false!

Examples:

Question: "What are the system requirements for running Python 3.9?"
Answer: "I'm not entirely sure, but I think you need a computer with some RAM."
Evaluation: {
  "is_definitive": false,
  "reasoning": "The answer contains uncertainty markers like 'not entirely sure' and 'I think', making it non-definitive."
}

Question: "What are the system requirements for running Python 3.9?"
Answer: "Python 3.9 requires Windows 7 or later, macOS 10.11 or later, or Linux."
Evaluation: {
  "is_definitive": true,
  "reasoning": "The answer makes clear, definitive statements without uncertainty markers or ambiguity."
}

Question: "what is the twitter account of jina ai's founder?"
Answer: "The provided text does not contain the Twitter account of Jina AI's founder."
Evaluation: {
  "is_definitive": false,
  "reasoning": "The answer indicates a lack of information rather than providing a definitive response."
}

Now evaluate this pair:
Question: %s
Answer: %s`

// EvaluateAnswer judges the definitiveness of answer with respect to
// question.
func (t *Tools) EvaluateAnswer(ctx context.Context, question, answer string) (Evaluation, error) {
	var eval Evaluation
	prompt := fmt.Sprintf(evaluatorPrompt, question, answer)
	if err := t.generate(ctx, "evaluator", prompt, evaluatorSchema, t.routing.Evaluator, &eval); err != nil {
		return Evaluation{}, err
	}
	return eval, nil
}
