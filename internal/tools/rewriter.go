package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/deepresearch/models"
)

var rewriterSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "think": {
      "type": "string",
      "description": "Strategic reasoning about query complexity and search approach"
    },
    "queries": {
      "type": "array",
      "items": {
        "type": "string",
        "description": "Search query, must be less than 30 characters"
      },
      "description": "Array of search queries, orthogonal to each other",
      "minItems": 1,
      "maxItems": 3
    }
  },
  "required": ["think", "queries"],
  "additionalProperties": false
}`)

const rewriterPrompt = `You are an expert Information Retrieval Assistant. Transform user queries into precise keyword combinations with strategic reasoning and appropriate search operators.

<rules>
1. Generate search queries that directly include appropriate operators
2. Keep base keywords minimal: 2-3 words preferred
3. Use exact match quotes for specific phrases that must stay together
4. Split queries only when necessary for distinctly different aspects
5. Preserve crucial qualifiers while removing fluff words
6. Make the query resistant to SEO manipulation
7. When necessary, append <query-operators> at the end only when must needed

<query-operators>
A query can't only have operators; and operators can't be at the start a query;

- "phrase" : exact match for phrases
- +term : must include term; for critical terms that must appear
- -term : exclude term; exclude irrelevant or ambiguous terms
- filetype:pdf/doc : specific file type
- site:example.com : limit to specific site
- lang:xx : language filter (ISO 639-1 code)
- loc:xx : location filter (ISO 3166-1 code)
- intitle:term : term must be in title
- inbody:term : term must be in body text
</query-operators>

Now, process this query:
Input Query: %s
Intention: %s`

// RewriteQuery expands a search action into up to three keyword queries.
func (t *Tools) RewriteQuery(ctx context.Context, action models.Action) ([]string, error) {
	var resp struct {
		Think   string   `json:"think"`
		Queries []string `json:"queries"`
	}
	prompt := fmt.Sprintf(rewriterPrompt, action.SearchQuery, action.Think)
	if err := t.generate(ctx, "query-rewriter", prompt, rewriterSchema, t.routing.QueryRewriter, &resp); err != nil {
		return nil, err
	}
	return resp.Queries, nil
}
