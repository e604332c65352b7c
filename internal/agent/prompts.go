package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/knowledge"
)

// actionSchema builds the JSON schema for the decision step. The enum only
// lists the actions still allowed, so a disabled move cannot come back in
// the same step.
func actionSchema(allowed []string) json.RawMessage {
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	schema := fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": [%s],
      "description": "The next move to make"
    },
    "think": {
      "type": "string",
      "description": "Reasoning behind the chosen action"
    },
    "searchQuery": {
      "type": "string",
      "description": "For search: the natural language query to look up"
    },
    "answer": {
      "type": "string",
      "description": "For answer: the complete answer to the current question"
    },
    "references": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "exactQuote": {"type": "string"},
          "url": {"type": "string"}
        },
        "required": ["exactQuote", "url"]
      },
      "description": "For answer: supporting quotes from gathered knowledge"
    },
    "questionsToAnswer": {
      "type": "array",
      "items": {"type": "string"},
      "description": "For reflect: sub-questions that close knowledge gaps"
    },
    "URLTargets": {
      "type": "array",
      "items": {"type": "string"},
      "description": "For visit: URLs worth reading in full"
    }
  },
  "required": ["action", "think"]
}`, strings.Join(quoted, ","))
	return json.RawMessage(schema)
}

const decisionHeader = `Current date: %s

You are an advanced AI research agent. You are specialized in multistep reasoning. Using your training data and the knowledge gathered so far, answer the following question with absolute certainty, or choose the action that gets you closer to an answer.

## Question
%s
`

func decisionPrompt(question string, ki *knowledge.Index, diary []string, allowed map[string]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, decisionHeader, time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 MST"), question)

	if items := ki.Items(); len(items) > 0 {
		b.WriteString("\n## Knowledge\nYou have gathered the following knowledge so far:\n")
		for i, item := range items {
			fmt.Fprintf(&b, "\n<knowledge-%d source=%q url=%q title=%q>\n%s\n</knowledge-%d>\n", i+1, item.Source, item.URL, item.Title, item.Content, i+1)
		}
	}

	if len(diary) > 0 {
		b.WriteString("\n## Actions taken\nYou have conducted the following actions:\n")
		for _, entry := range diary {
			b.WriteString(entry)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Available actions\nBased on the current context, you must choose one of the following actions:\n")
	if allowed["search"] {
		b.WriteString("- search: look up the web for external information when the knowledge above is not enough.\n")
	}
	if allowed["visit"] {
		b.WriteString("- visit: read the full content behind URLs that appeared in search results when the snippets are not enough.\n")
	}
	if allowed["reflect"] {
		b.WriteString("- reflect: break the question into smaller sub-questions when it cannot be answered directly.\n")
	}
	if allowed["answer"] {
		b.WriteString("- answer: give the final answer only when you are absolutely certain; include exact supporting quotes and their source URLs as references.\n")
	}
	b.WriteString("\nRespond with a JSON object describing your chosen action.")
	return b.String()
}

const finalizePrompt = `Current date: %s

You are an advanced AI research agent. The research budget for the question below is exhausted. You MUST now give your single best answer based on everything gathered. Admitting failure, asking for more time, or answering "I don't know" is not acceptable: commit to the most plausible answer the knowledge supports, and keep it direct.

## Question
%s
%s
## Failed attempts
%s

Answer in plain text.`

func forcedAnswerPrompt(question string, ki *knowledge.Index, diary []string) string {
	var knowledgeSection string
	if items := ki.Items(); len(items) > 0 {
		var b strings.Builder
		b.WriteString("\n## Knowledge\n")
		for i, item := range items {
			fmt.Fprintf(&b, "\n<knowledge-%d url=%q>\n%s\n</knowledge-%d>\n", i+1, item.URL, item.Content, i+1)
		}
		knowledgeSection = b.String()
	}
	return fmt.Sprintf(finalizePrompt,
		time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 MST"),
		question,
		knowledgeSection,
		strings.Join(diary, "\n"))
}
