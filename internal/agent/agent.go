package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/budget"
	"github.com/mohammad-safakhou/deepresearch/internal/knowledge"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/tools"
	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/reader"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

// budgetHeadroom is the token slack reserved so the forced final answer
// still fits once the loop stops.
const budgetHeadroom = 2000

// Agent drives one research task from question to answer. It is built per
// request: the trackers and the knowledge index belong to a single run.
type Agent struct {
	cfg      *config.Config
	logger   *log.Logger
	provider provider.Provider
	tools    *tools.Tools
	searcher web_search.WebSearcher
	reader   reader.Reader
	registry session.Registry
	store    *store.Store
	tokens   *budget.TokenTracker
	actions  *budget.ActionTracker
}

func New(cfg *config.Config, p provider.Provider, tl *tools.Tools, searcher web_search.WebSearcher, rd reader.Reader, registry session.Registry, st *store.Store, tokens *budget.TokenTracker, actions *budget.ActionTracker) *Agent {
	return &Agent{
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
		provider: p,
		tools:    tl,
		searcher: searcher,
		reader:   rd,
		registry: registry,
		store:    st,
		tokens:   tokens,
		actions:  actions,
	}
}

// ProcessQuery runs the whole lifecycle of a request: registry entry,
// research loop, final status, persistence. It is meant to run in its own
// goroutine; failures end up on the task record, not in a return value.
func (a *Agent) ProcessQuery(ctx context.Context, requestID, query string) {
	created := time.Now()
	if err := a.registry.Create(ctx, models.Task{
		RequestID: requestID,
		Query:     query,
		Status:    models.StatusRunning,
		CreatedAt: created,
	}); err != nil {
		a.logger.Printf("failed to register task %s: %v", requestID, err)
		return
	}

	answer, err := a.run(ctx, requestID, query)
	status := models.StatusCompleted
	final := answer
	if err != nil {
		a.logger.Printf("task %s failed: %v", requestID, err)
		status = models.StatusError
		final = err.Error()
	}
	if ferr := a.registry.Finish(ctx, requestID, status, final); ferr != nil {
		a.logger.Printf("failed to finish task %s: %v", requestID, ferr)
	}
	a.persist(ctx, requestID, query, status, final, created)
}

func (a *Agent) persist(ctx context.Context, requestID, query, status, final string, created time.Time) {
	if a.store == nil {
		return
	}
	task, err := a.registry.Get(ctx, requestID)
	if err != nil {
		a.logger.Printf("failed to load task %s for persistence: %v", requestID, err)
		return
	}
	finished := time.Now()
	rec := store.TaskRecord{
		RequestID:   requestID,
		Query:       query,
		Status:      status,
		FinalAnswer: final,
		Actions:     task.Actions,
		TokenUsage:  a.tokens.UsageBreakdown(),
		TotalTokens: a.tokens.TotalUsage(),
		CreatedAt:   created,
		FinishedAt:  &finished,
	}
	if err := a.store.SaveTask(ctx, rec); err != nil {
		a.logger.Printf("failed to persist task %s: %v", requestID, err)
	}
}

// run is the step loop: decide, act, repeat until a definitive answer to
// the original question lands or a limit trips. Limits always end with one
// forced best-effort answer so the caller never gets nothing back.
func (a *Agent) run(ctx context.Context, requestID, query string) (string, error) {
	ki, err := knowledge.New()
	if err != nil {
		return "", fmt.Errorf("failed to build knowledge index: %w", err)
	}
	defer ki.Close()

	gaps := []string{query}
	a.actions.SetGaps(gaps)
	allQuestions := []string{query}
	var allQueries []string
	visited := make(map[string]bool)
	var diary []string
	badAttempts := 0
	answerBlocked := false
	searchBlocked := false
	visitBlocked := false

	for step := 1; step <= a.cfg.Agent.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if a.tokens.Exceeded(budgetHeadroom) {
			a.logger.Printf("task %s stopping at step %d: budget nearly exhausted (%d used)", requestID, step, a.tokens.TotalUsage())
			break
		}
		if badAttempts >= a.cfg.Agent.MaxBadAttempts {
			a.logger.Printf("task %s stopping at step %d: %d rejected answers", requestID, step, badAttempts)
			break
		}

		// Rotate the gap queue so sub-questions take turns with the
		// original question.
		currentQuestion := gaps[0]
		gaps = append(gaps[1:], currentQuestion)

		allowed := map[string]bool{"search": true, "visit": true, "reflect": true, "answer": true}
		if answerBlocked {
			allowed["answer"] = false
			answerBlocked = false
		}
		if searchBlocked {
			allowed["search"] = false
			searchBlocked = false
		}
		if visitBlocked {
			allowed["visit"] = false
			visitBlocked = false
		}
		if ki.Len() == 0 {
			// Nothing gathered yet, nothing to visit.
			allowed["visit"] = false
		}

		action, err := a.decide(ctx, currentQuestion, ki, diary, allowed)
		if err != nil {
			return "", err
		}

		a.actions.TrackStep(action)
		telemetry.StepsTotal.WithLabelValues(string(action.Action)).Inc()
		if err := a.registry.AppendAction(ctx, requestID, action); err != nil {
			a.logger.Printf("failed to append action for %s: %v", requestID, err)
		}

		switch action.Action {
		case models.ActionSearch:
			if a.doSearch(ctx, step, action, &allQueries, ki, &diary) == 0 {
				searchBlocked = true
			}
		case models.ActionVisit:
			if a.doVisit(ctx, step, action, visited, ki, &diary) == 0 {
				visitBlocked = true
			}
		case models.ActionReflect:
			var added bool
			gaps, added = a.doReflect(ctx, step, action, gaps, &allQuestions, &diary)
			a.actions.SetGaps(gaps)
			if !added {
				badAttempts++
				a.actions.AddBadAttempt()
			}
		case models.ActionAnswer:
			eval, err := a.tools.EvaluateAnswer(ctx, currentQuestion, action.Answer)
			if err != nil {
				return "", err
			}
			if eval.IsDefinitive {
				if currentQuestion == query {
					return action.Answer, nil
				}
				// A sub-question closed: keep the finding, drop the gap.
				if _, err := ki.Add(knowledge.Item{Source: "reflect", Title: currentQuestion, Content: action.Answer}); err != nil {
					a.logger.Printf("failed to index sub-answer: %v", err)
				}
				gaps = removeGap(gaps, currentQuestion)
				a.actions.SetGaps(gaps)
				diary = append(diary, fmt.Sprintf("At step %d, you answered the sub-question %q definitively and added the finding to your knowledge.", step, currentQuestion))
			} else {
				badAttempts++
				a.actions.AddBadAttempt()
				diary = append(diary, fmt.Sprintf("At step %d, you tried to answer %q but the answer was rejected: %s", step, currentQuestion, eval.Reasoning))
				if analysis, aerr := a.tools.AnalyzeSteps(ctx, diary); aerr == nil {
					diary = append(diary, fmt.Sprintf("Reviewing what went wrong: %s The root cause: %s To improve: %s", analysis.Recap, analysis.Blame, analysis.Improvement))
				} else {
					a.logger.Printf("step analysis failed: %v", aerr)
				}
				answerBlocked = true
			}
		default:
			a.logger.Printf("task %s: model returned unknown action %q, treating as no-op", requestID, action.Action)
		}

		if a.cfg.Agent.StepSleep > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(a.cfg.Agent.StepSleep):
			}
		}
	}

	return a.forceAnswer(ctx, requestID, query, ki, diary)
}

// decide asks the routed model for the next action, constrained to the
// allowed set.
func (a *Agent) decide(ctx context.Context, question string, ki *knowledge.Index, diary []string, allowed map[string]bool) (models.Action, error) {
	var names []string
	for _, n := range []string{"search", "visit", "reflect", "answer"} {
		if allowed[n] {
			names = append(names, n)
		}
	}

	raw, usage, err := a.provider.GenerateSchema(ctx, "", decisionPrompt(question, ki, diary, allowed), actionSchema(names), routeParams(a.cfg.LLM.Routing.Agent))
	if err != nil {
		return models.Action{}, fmt.Errorf("decision step failed: %w", err)
	}
	if terr := a.tokens.TrackUsage("agent", usage.TotalTokens); terr != nil {
		a.logger.Printf("agent usage dropped: %v", terr)
	}

	clean, err := tools.ExtractJSON(string(raw))
	if err != nil {
		return models.Action{}, fmt.Errorf("decision step returned no JSON: %w", err)
	}
	var action models.Action
	if err := json.Unmarshal([]byte(clean), &action); err != nil {
		return models.Action{}, fmt.Errorf("failed to parse decision: %w", err)
	}
	if !allowed[string(action.Action)] {
		a.logger.Printf("model chose disallowed action %q, falling back", action.Action)
		if allowed["search"] {
			action.Action = models.ActionSearch
			if action.SearchQuery == "" {
				action.SearchQuery = question
			}
		} else {
			action.Action = models.ActionReflect
			if len(action.QuestionsToAnswer) == 0 {
				action.QuestionsToAnswer = []string{question}
			}
		}
	}
	return action, nil
}

func (a *Agent) doSearch(ctx context.Context, step int, action models.Action, allQueries *[]string, ki *knowledge.Index, diary *[]string) int {
	queries, err := a.tools.RewriteQuery(ctx, action)
	if err != nil || len(queries) == 0 {
		if err != nil {
			a.logger.Printf("query rewrite failed, searching verbatim: %v", err)
		}
		queries = []string{action.SearchQuery}
	}
	unique, err := a.tools.DedupQueries(ctx, queries, *allQueries)
	if err != nil {
		a.logger.Printf("dedup failed, keeping all rewrites: %v", err)
		unique = queries
	}
	if len(unique) == 0 {
		*diary = append(*diary, fmt.Sprintf("At step %d, you wanted to search for %q but every rewritten query duplicated an earlier search.", step, action.SearchQuery))
		return 0
	}

	searched := 0
	toolName := fmt.Sprintf("%s-search", a.cfg.Search.Provider)
	for _, q := range unique {
		results, tk, err := a.searcher.Search(ctx, q, a.cfg.Search.TopK)
		if err != nil {
			a.logger.Printf("search %q failed: %v", q, err)
			continue
		}
		if terr := a.tokens.TrackUsage(toolName, tk); terr != nil {
			a.logger.Printf("search usage dropped: %v", terr)
		}
		for _, r := range results {
			if _, err := ki.Add(knowledge.Item{Source: "search", Title: r.Title, URL: r.URL, Content: r.Snippet}); err != nil {
				a.logger.Printf("failed to index search result: %v", err)
			}
		}
		*allQueries = append(*allQueries, q)
		searched++
		*diary = append(*diary, fmt.Sprintf("At step %d, you searched for %q and found %d results.", step, q, len(results)))
	}
	return searched
}

func (a *Agent) doVisit(ctx context.Context, step int, action models.Action, visited map[string]bool, ki *knowledge.Index, diary *[]string) int {
	read := 0
	attempted := 0
	for _, u := range action.URLTargets {
		if read >= a.cfg.Reader.MaxURLsPerVisit {
			break
		}
		if visited[u] {
			continue
		}
		visited[u] = true
		attempted++
		page, tk, err := a.reader.Read(ctx, u)
		if err != nil {
			a.logger.Printf("read %q failed: %v", u, err)
			*diary = append(*diary, fmt.Sprintf("At step %d, you tried to visit %s but the page could not be read.", step, u))
			continue
		}
		if terr := a.tokens.TrackUsage("read", tk); terr != nil {
			a.logger.Printf("read usage dropped: %v", terr)
		}
		if _, err := ki.Add(knowledge.Item{Source: "read", Title: page.Title, URL: page.URL, Content: page.Content}); err != nil {
			a.logger.Printf("failed to index page: %v", err)
		}
		read++
		*diary = append(*diary, fmt.Sprintf("At step %d, you visited %s (%q) and added its content to your knowledge.", step, page.URL, page.Title))
	}
	if attempted == 0 {
		*diary = append(*diary, fmt.Sprintf("At step %d, you wanted to visit pages but every target URL had already been visited.", step))
	}
	return read
}

// doReflect checks proposed sub-questions against every question ever
// asked, not just the open gaps, so an answered question cannot come back.
func (a *Agent) doReflect(ctx context.Context, step int, action models.Action, gaps []string, allQuestions *[]string, diary *[]string) ([]string, bool) {
	unique, err := a.tools.DedupQueries(ctx, action.QuestionsToAnswer, *allQuestions)
	if err != nil {
		a.logger.Printf("sub-question dedup failed: %v", err)
		unique = nil
	}
	if len(unique) == 0 {
		*diary = append(*diary, fmt.Sprintf("At step %d, you reflected on the question but every sub-question was already covered.", step))
		return gaps, false
	}
	gaps = append(gaps, unique...)
	*allQuestions = append(*allQuestions, unique...)
	*diary = append(*diary, fmt.Sprintf("At step %d, you broke the question into %d new sub-questions: %v", step, len(unique), unique))
	return gaps, true
}

// forceAnswer is the out-of-budget path: one last call that must commit
// to an answer from whatever was gathered.
func (a *Agent) forceAnswer(ctx context.Context, requestID, query string, ki *knowledge.Index, diary []string) (string, error) {
	answer, usage, err := a.provider.Generate(ctx, "", forcedAnswerPrompt(query, ki, diary), routeParams(a.cfg.LLM.Routing.Agent))
	if err != nil {
		return "", fmt.Errorf("forced answer failed: %w", err)
	}
	if terr := a.tokens.TrackUsage("agent", usage.TotalTokens); terr != nil {
		a.logger.Printf("forced answer usage dropped: %v", terr)
	}

	final := models.Action{
		Action:     models.ActionAnswer,
		Think:      "The research budget is exhausted, committing to the best supported answer.",
		Answer:     answer,
		References: a.resolveReferences(ki, query),
	}
	a.actions.TrackStep(final)
	telemetry.StepsTotal.WithLabelValues(string(models.ActionAnswer)).Inc()
	if err := a.registry.AppendAction(ctx, requestID, final); err != nil {
		a.logger.Printf("failed to append final action for %s: %v", requestID, err)
	}
	return answer, nil
}

// resolveReferences backs the answer with the best-matching gathered
// sources so even a forced answer points at its evidence.
func (a *Agent) resolveReferences(ki *knowledge.Index, query string) []models.Reference {
	hits, err := ki.Search(query, 3)
	if err != nil {
		a.logger.Printf("reference lookup failed: %v", err)
		return nil
	}
	var refs []models.Reference
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		quote := h.Content
		if len(quote) > 200 {
			quote = quote[:200]
		}
		refs = append(refs, models.Reference{ExactQuote: quote, URL: h.URL})
	}
	return refs
}

func routeParams(r config.ModelRoute) models.ModelParams {
	return models.ModelParams{Model: r.Model, Temperature: r.Temperature, MaxTokens: r.MaxTokens}
}

func removeGap(gaps []string, q string) []string {
	out := gaps[:0]
	for _, g := range gaps {
		if g != q {
			out = append(out, g)
		}
	}
	return out
}
