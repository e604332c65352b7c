package budget

import (
	"testing"

	"github.com/mohammad-safakhou/deepresearch/models"
)

func TestActionTrackerSteps(t *testing.T) {
	at := NewActionTracker()
	if st := at.State(); st.TotalStep != 0 {
		t.Fatalf("expected zero steps got %d", st.TotalStep)
	}
	at.TrackStep(models.Action{Action: models.ActionSearch, SearchQuery: "go sse"})
	at.TrackStep(models.Action{Action: models.ActionVisit})
	st := at.State()
	if st.TotalStep != 2 {
		t.Fatalf("expected 2 steps got %d", st.TotalStep)
	}
	if st.ThisStep.Action != models.ActionVisit {
		t.Fatalf("expected last step to be visit got %s", st.ThisStep.Action)
	}
}

func TestActionTrackerGapsAndBadAttempts(t *testing.T) {
	at := NewActionTracker()
	at.SetGaps([]string{"original question", "sub question"})
	if n := at.AddBadAttempt(); n != 1 {
		t.Fatalf("expected first bad attempt to return 1 got %d", n)
	}
	at.AddBadAttempt()
	st := at.State()
	if len(st.Gaps) != 2 || st.BadAttempts != 2 {
		t.Fatalf("unexpected state: %+v", st)
	}
	// returned state is a copy
	st.Gaps[0] = "mutated"
	if at.State().Gaps[0] != "original question" {
		t.Fatalf("State must return a copy of gaps")
	}
}

func TestActionTrackerReset(t *testing.T) {
	at := NewActionTracker()
	at.TrackStep(models.Action{Action: models.ActionAnswer})
	at.AddBadAttempt()
	at.Reset()
	st := at.State()
	if st.TotalStep != 0 || st.BadAttempts != 0 || len(st.Gaps) != 0 {
		t.Fatalf("expected clean state after reset: %+v", st)
	}
}
