package budget

import (
	"sync"

	"github.com/mohammad-safakhou/deepresearch/models"
)

// ActionState is a snapshot of where the research loop currently stands.
type ActionState struct {
	ThisStep    models.Action `json:"this_step"`
	Gaps        []string      `json:"gaps"`
	BadAttempts int           `json:"bad_attempts"`
	TotalStep   int           `json:"total_step"`
}

// ActionTracker holds the loop's mutable progress state for observers
// (stream handlers, progress messages). Writers are the loop goroutine;
// readers take copies under the lock.
type ActionTracker struct {
	mu    sync.Mutex
	state ActionState
}

// NewActionTracker starts with an empty answer step at step zero.
func NewActionTracker() *ActionTracker {
	return &ActionTracker{
		state: ActionState{
			ThisStep: models.Action{Action: models.ActionAnswer},
		},
	}
}

// TrackStep records the latest action and bumps the step counter.
func (a *ActionTracker) TrackStep(step models.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.ThisStep = step
	a.state.TotalStep++
}

// SetGaps replaces the open question list.
func (a *ActionTracker) SetGaps(gaps []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Gaps = append([]string(nil), gaps...)
}

// AddBadAttempt increments the failed-answer counter and returns the new value.
func (a *ActionTracker) AddBadAttempt() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.BadAttempts++
	return a.state.BadAttempts
}

// State returns a copy of the current state.
func (a *ActionTracker) State() ActionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.state
	out.Gaps = append([]string(nil), a.state.Gaps...)
	return out
}

// Reset returns the tracker to its initial state.
func (a *ActionTracker) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = ActionState{ThisStep: models.Action{Action: models.ActionAnswer}}
}
