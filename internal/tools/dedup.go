package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

var dedupSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "think": {
      "type": "string",
      "description": "Strategic reasoning about the overall deduplication approach"
    },
    "unique_queries": {
      "type": "array",
      "items": {
        "type": "string",
        "description": "Unique query that passed the deduplication process, must be less than 30 characters"
      },
      "description": "Array of semantically unique queries"
    }
  },
  "required": ["think", "unique_queries"],
  "additionalProperties": false
}`)

const dedupPrompt = `You are an expert in semantic similarity analysis. Given a set of queries (setA) and a set of queries (setB)

<rules>
Function FilterSetA(setA, setB, threshold):
    filteredA = empty set

    for each candidateQuery in setA:
        isValid = true

        // Check similarity with already accepted queries in filteredA
        for each acceptedQuery in filteredA:
            similarity = calculateSimilarity(candidateQuery, acceptedQuery)
            if similarity >= threshold:
                isValid = false
                break

        // If passed first check, compare with set B
        if isValid:
            for each queryB in setB:
                similarity = calculateSimilarity(candidateQuery, queryB)
                if similarity >= threshold:
                    isValid = false
                    break

        // If passed all checks, add to filtered set
        if isValid:
            add candidateQuery to filteredA

    return filteredA
</rules>

<similarity-definition>
1. Consider semantic meaning and query intent, not just lexical similarity
2. Account for different phrasings of the same information need
3. Queries with same base keywords but different operators are NOT duplicates
4. Different aspects or perspectives of the same topic are not duplicates
5. Consider query specificity - a more specific query is not a duplicate of a general one
6. Search operators that make queries behave differently:
   - Different site: filters (e.g., site:youtube.com vs site:github.com)
   - Different file types (e.g., filetype:pdf vs filetype:doc)
   - Different language/location filters (e.g., lang:en vs lang:es)
   - Different exact match phrases (e.g., "exact phrase" vs no quotes)
   - Different inclusion/exclusion (+/- operators)
   - Different title/body filters (intitle: vs inbody:)
</similarity-definition>

Now with threshold set to %.1f; run FilterSetA on the following:
SetA: %v
SetB: %v`

// dedupThreshold is the similarity above which two queries count as the
// same information need.
const dedupThreshold = 0.2

// DedupQueries filters newQueries down to the ones not already covered by
// existingQueries or by each other.
func (t *Tools) DedupQueries(ctx context.Context, newQueries, existingQueries []string) ([]string, error) {
	if len(newQueries) == 0 {
		return nil, nil
	}
	var resp struct {
		Think         string   `json:"think"`
		UniqueQueries []string `json:"unique_queries"`
	}
	prompt := fmt.Sprintf(dedupPrompt, dedupThreshold, newQueries, existingQueries)
	if err := t.generate(ctx, "dedup", prompt, dedupSchema, t.routing.Dedup, &resp); err != nil {
		return nil, err
	}
	return resp.UniqueQueries, nil
}
