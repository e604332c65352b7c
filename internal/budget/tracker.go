package budget

import (
	"log"
	"sync"
)

// TokenUsage is one recorded spend attributed to a tool.
type TokenUsage struct {
	Tool   string `json:"tool"`
	Tokens int    `json:"tokens"`
}

// TokenTracker accumulates token usage per tool against an optional budget
// ceiling. An addition that would push the total past the budget is dropped
// whole; the total never moves partially. The check and the append happen
// under one lock so concurrent callers cannot overshoot the ceiling.
type TokenTracker struct {
	mu     sync.Mutex
	usages []TokenUsage
	total  int
	budget int // 0 means unlimited
	logger *log.Logger
}

// NewTokenTracker creates a tracker with the given budget. A budget of zero
// or less disables the ceiling.
func NewTokenTracker(budget int) *TokenTracker {
	return &TokenTracker{
		budget: budget,
		logger: log.New(log.Writer(), "[BUDGET] ", log.LstdFlags),
	}
}

// TrackUsage records tokens spent by tool. When a budget is set and the
// addition would exceed it, nothing is recorded and ErrBudgetExceeded is
// returned so callers can wind down.
func (t *TokenTracker) TrackUsage(tool string, tokens int) error {
	if tokens < 0 {
		tokens = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.budget > 0 && t.total+tokens > t.budget {
		t.logger.Printf("token budget exceeded: %d + %d > %d (tool=%s)", t.total, tokens, t.budget, tool)
		return ErrBudgetExceeded{Used: t.total, Requested: tokens, Budget: t.budget}
	}
	t.usages = append(t.usages, TokenUsage{Tool: tool, Tokens: tokens})
	t.total += tokens
	return nil
}

// TotalUsage returns the sum of all recorded amounts.
func (t *TokenTracker) TotalUsage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// UsageBreakdown returns cumulative tokens per tool.
func (t *TokenTracker) UsageBreakdown() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	breakdown := make(map[string]int, len(t.usages))
	for _, u := range t.usages {
		breakdown[u.Tool] += u.Tokens
	}
	return breakdown
}

// Budget returns the configured ceiling (0 when unlimited).
func (t *TokenTracker) Budget() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget
}

// Exceeded reports whether the tracker is within headroomTokens of the
// ceiling. With no budget set it always returns false.
func (t *TokenTracker) Exceeded(headroomTokens int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.budget <= 0 {
		return false
	}
	return t.total+headroomTokens > t.budget
}

// Usages returns a copy of the recorded spend in insertion order.
func (t *TokenTracker) Usages() []TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TokenUsage, len(t.usages))
	copy(out, t.usages)
	return out
}

// Reset drops all recorded usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usages = nil
	t.total = 0
}
