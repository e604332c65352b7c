package models

import (
	"time"
)

// ActionType enumerates the moves the research loop can make on a step.
type ActionType string

const (
	ActionSearch  ActionType = "search"
	ActionAnswer  ActionType = "answer"
	ActionReflect ActionType = "reflect"
	ActionVisit   ActionType = "visit"
)

// Reference points at a supporting quote for an answer.
type Reference struct {
	ExactQuote string `json:"exactQuote"`
	URL        string `json:"url"`
}

// Action is one observable step of a research task. The populated fields
// depend on Action: SearchQuery for search, Answer/References for answer,
// QuestionsToAnswer for reflect, URLTargets for visit.
type Action struct {
	Action            ActionType  `json:"action"`
	Think             string      `json:"think"`
	SearchQuery       string      `json:"searchQuery,omitempty"`
	Answer            string      `json:"answer,omitempty"`
	References        []Reference `json:"references,omitempty"`
	QuestionsToAnswer []string    `json:"questionsToAnswer,omitempty"`
	URLTargets        []string    `json:"URLTargets,omitempty"`
}

// Task statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Task is the shared state of one research request: the loop appends to
// Actions while stream/task readers take snapshots.
type Task struct {
	RequestID   string     `json:"request_id"`
	Query       string     `json:"query"`
	Status      string     `json:"status"`
	Actions     []Action   `json:"actions"`
	FinalAnswer string     `json:"final_answer,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy so readers never alias the loop's slices.
func (t Task) Clone() Task {
	out := t
	if t.Actions != nil {
		out.Actions = make([]Action, len(t.Actions))
		copy(out.Actions, t.Actions)
	}
	if t.FinishedAt != nil {
		ts := *t.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}

// BudgetInfo reports token spend against the configured ceiling.
type BudgetInfo struct {
	Used       int    `json:"used"`
	Total      int    `json:"total"`
	Percentage string `json:"percentage"`
}

// StreamMessage is the envelope pushed over the SSE stream.
type StreamMessage struct {
	Type   string      `json:"type"` // progress, answer, error
	Data   interface{} `json:"data"`
	Step   int         `json:"step,omitempty"`
	Budget *BudgetInfo `json:"budget,omitempty"`
}

// Usage reports the token spend of a single LLM completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelParams selects the model and sampling settings for one LLM call.
// Each tool routes to its own model and temperature, so these travel per
// call rather than living on the client.
type ModelParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// SearchResult is one hit from a web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Page is the readable extraction of a visited URL.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
