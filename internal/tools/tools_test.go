package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/internal/budget"
	"github.com/mohammad-safakhou/deepresearch/models"
)

// fakeProvider replays scripted completions and records the prompts it saw.
type fakeProvider struct {
	responses []string
	tokens    int
	prompts   []string
}

func (f *fakeProvider) Generate(ctx context.Context, system, user string, p models.ModelParams) (string, models.Usage, error) {
	f.prompts = append(f.prompts, user)
	out := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return out, models.Usage{TotalTokens: f.tokens}, nil
}

func (f *fakeProvider) GenerateSchema(ctx context.Context, system, user string, schema json.RawMessage, p models.ModelParams) (json.RawMessage, models.Usage, error) {
	out, usage, err := f.Generate(ctx, system, user, p)
	return json.RawMessage(out), usage, err
}

func testRouting() Routing {
	return Routing{
		Evaluator:     models.ModelParams{Model: "gpt-4o-mini", Temperature: 0.1},
		QueryRewriter: models.ModelParams{Model: "gpt-4o-mini", Temperature: 0.7},
		Dedup:         models.ModelParams{Model: "gpt-4o-mini", Temperature: 0.1},
		ErrorAnalyzer: models.ModelParams{Model: "gpt-4o-mini", Temperature: 0.3},
	}
}

func TestEvaluateAnswerTracksUsage(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"is_definitive":false,"reasoning":"hedged"}`}, tokens: 42}
	tracker := budget.NewTokenTracker(0)
	tl := New(fake, tracker, testRouting())

	eval, err := tl.EvaluateAnswer(context.Background(), "who founded jina ai?", "I am not sure.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.IsDefinitive {
		t.Fatalf("expected non-definitive verdict")
	}
	if got := tracker.UsageBreakdown()["evaluator"]; got != 42 {
		t.Fatalf("expected 42 tokens booked under evaluator, got %d", got)
	}
	if !strings.Contains(fake.prompts[0], "who founded jina ai?") {
		t.Fatalf("question missing from prompt")
	}
}

func TestRewriteQueryFencedResponse(t *testing.T) {
	fake := &fakeProvider{responses: []string{"```json\n{\"think\":\"split it\",\"queries\":[\"go sse server\",\"echo streaming\"]}\n```"}, tokens: 10}
	tl := New(fake, budget.NewTokenTracker(0), testRouting())

	queries, err := tl.RewriteQuery(context.Background(), models.Action{
		Action:      models.ActionSearch,
		SearchQuery: "how to stream server sent events from go",
		Think:       "need implementation detail",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) != 2 || queries[0] != "go sse server" {
		t.Fatalf("unexpected queries: %v", queries)
	}
}

func TestDedupQueriesEmptyInputSkipsProvider(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{}`}}
	tl := New(fake, budget.NewTokenTracker(0), testRouting())

	out, err := tl.DedupQueries(context.Background(), nil, []string{"existing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output, got %v", out)
	}
	if len(fake.prompts) != 0 {
		t.Fatalf("provider should not be called for empty input")
	}
}

func TestDedupQueriesFilters(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"think":"a dupes b","unique_queries":["fresh angle"]}`}, tokens: 5}
	tracker := budget.NewTokenTracker(0)
	tl := New(fake, tracker, testRouting())

	out, err := tl.DedupQueries(context.Background(), []string{"fresh angle", "old thing"}, []string{"old thing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "fresh angle" {
		t.Fatalf("unexpected queries: %v", out)
	}
	if got := tracker.UsageBreakdown()["dedup"]; got != 5 {
		t.Fatalf("expected dedup usage booked, got %d", got)
	}
}

func TestAnalyzeStepsParses(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"recap":"searched twice","blame":"step 2 repeated step 1","improvement":"visit the primary source"}`}, tokens: 8}
	tl := New(fake, budget.NewTokenTracker(0), testRouting())

	analysis, err := tl.AnalyzeSteps(context.Background(), []string{"step 1: searched", "step 2: searched again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Blame == "" || analysis.Improvement == "" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
}

func TestToolErrorOnGarbageResponse(t *testing.T) {
	fake := &fakeProvider{responses: []string{"definitely not json"}}
	tl := New(fake, budget.NewTokenTracker(0), testRouting())

	if _, err := tl.EvaluateAnswer(context.Background(), "q", "a"); err == nil {
		t.Fatalf("expected error for non-JSON response")
	}
}
