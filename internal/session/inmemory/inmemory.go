package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/models"
)

type Registry struct {
	tasks map[string]*models.Task
	mu    sync.RWMutex
}

func NewInMemoryRegistry() session.Registry {
	return &Registry{tasks: make(map[string]*models.Task)}
}

func (r *Registry) Create(ctx context.Context, task models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := task.Clone()
	r.tasks[task.RequestID] = &t
	return nil
}

func (r *Registry) Get(ctx context.Context, requestID string) (models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[requestID]
	if !ok {
		return models.Task{}, session.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *Registry) AppendAction(ctx context.Context, requestID string, action models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[requestID]
	if !ok {
		return session.ErrNotFound
	}
	t.Actions = append(t.Actions, action)
	return nil
}

func (r *Registry) Finish(ctx context.Context, requestID string, status, finalAnswer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[requestID]
	if !ok {
		return session.ErrNotFound
	}
	t.Status = status
	t.FinalAnswer = finalAnswer
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

func (r *Registry) Delete(ctx context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, requestID)
	return nil
}
