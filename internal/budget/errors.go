package budget

import "fmt"

// ErrBudgetExceeded is returned when an addition would push usage past the
// configured token ceiling. The addition is not applied.
type ErrBudgetExceeded struct {
	Used      int
	Requested int
	Budget    int
}

func (e ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("token budget exceeded: usage=%d requested=%d budget=%d", e.Used, e.Requested, e.Budget)
}

// IsExceeded reports whether err is a budget breach.
func IsExceeded(err error) bool {
	_, ok := err.(ErrBudgetExceeded)
	return ok
}
