package session

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/deepresearch/models"
)

// ErrNotFound is returned for request IDs the registry has never seen or
// has already swept.
var ErrNotFound = errors.New("task not found")

// Registry holds the live state of research tasks. The loop writes,
// stream and task handlers read snapshots. Implementations must keep the
// action list append-only so late subscribers can replay from the start.
type Registry interface {
	Create(ctx context.Context, task models.Task) error
	Get(ctx context.Context, requestID string) (models.Task, error)
	AppendAction(ctx context.Context, requestID string, action models.Action) error
	Finish(ctx context.Context, requestID string, status, finalAnswer string) error
	Delete(ctx context.Context, requestID string) error
}
