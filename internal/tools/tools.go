package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/deepresearch/internal/budget"
	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/provider"
)

// Routing selects the model and sampling settings for each helper. The
// evaluative helpers run cold, the rewriter runs warm.
type Routing struct {
	Evaluator     models.ModelParams
	QueryRewriter models.ModelParams
	Dedup         models.ModelParams
	ErrorAnalyzer models.ModelParams
}

// Tools bundles the LLM-backed helpers the research loop calls between
// steps. Every call records its token spend on the shared tracker.
type Tools struct {
	provider provider.Provider
	tracker  *budget.TokenTracker
	routing  Routing
	logger   *log.Logger
}

func New(p provider.Provider, tracker *budget.TokenTracker, routing Routing) *Tools {
	return &Tools{
		provider: p,
		tracker:  tracker,
		routing:  routing,
		logger:   log.New(log.Writer(), "[TOOLS] ", log.LstdFlags),
	}
}

// generate runs one schema-constrained call, unmarshals the result into out
// and books the spend under tool. A budget breach is logged, not returned:
// the tokens are already spent and the loop decides when to stop.
func (t *Tools) generate(ctx context.Context, tool, prompt string, schema json.RawMessage, p models.ModelParams, out interface{}) error {
	raw, usage, err := t.provider.GenerateSchema(ctx, "", prompt, schema, p)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", tool, err)
	}
	clean, err := ExtractJSON(string(raw))
	if err != nil {
		return fmt.Errorf("%s returned no JSON: %w", tool, err)
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", tool, err)
	}
	if err := t.tracker.TrackUsage(tool, usage.TotalTokens); err != nil {
		t.logger.Printf("%s usage dropped: %v", tool, err)
	}
	return nil
}
