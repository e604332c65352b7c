package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/models"
)

// Registry keeps task state in redis so multiple service replicas can
// serve stream and task reads for the same request. The loop is the only
// writer for a given request ID, so get-modify-set is safe here.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(addr, password string, db int, ttl time.Duration) session.Registry {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Registry{client: rdb, ttl: ttl}
}

func taskKey(requestID string) string {
	return fmt.Sprintf("task:%s", requestID)
}

func (r *Registry) Create(ctx context.Context, task models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, taskKey(task.RequestID), data, r.ttl).Err()
}

func (r *Registry) Get(ctx context.Context, requestID string) (models.Task, error) {
	val, err := r.client.Get(ctx, taskKey(requestID)).Result()
	if err == redis.Nil {
		return models.Task{}, session.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	var task models.Task
	if err := json.Unmarshal([]byte(val), &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *Registry) AppendAction(ctx context.Context, requestID string, action models.Action) error {
	return r.update(ctx, requestID, func(t *models.Task) {
		t.Actions = append(t.Actions, action)
	})
}

func (r *Registry) Finish(ctx context.Context, requestID string, status, finalAnswer string) error {
	return r.update(ctx, requestID, func(t *models.Task) {
		t.Status = status
		t.FinalAnswer = finalAnswer
		now := time.Now()
		t.FinishedAt = &now
	})
}

func (r *Registry) Delete(ctx context.Context, requestID string) error {
	return r.client.Del(ctx, taskKey(requestID)).Err()
}

func (r *Registry) update(ctx context.Context, requestID string, mutate func(*models.Task)) error {
	task, err := r.Get(ctx, requestID)
	if err != nil {
		return err
	}
	mutate(&task)
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, taskKey(requestID), data, redis.KeepTTL).Err()
}
