package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/deepresearch/models"
)

type Store struct {
	DB *sql.DB
}

// TaskRecord is the persisted shape of a finished (or failed) research
// task: the full action trail, the answer and the token accounting.
type TaskRecord struct {
	RequestID   string
	Query       string
	Status      string
	FinalAnswer string
	Actions     []models.Action
	TokenUsage  map[string]int
	TotalTokens int
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// SaveTask upserts the task so a rerun of the same request ID overwrites
// the earlier record.
func (s *Store) SaveTask(ctx context.Context, rec TaskRecord) error {
	actions, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	usage, err := json.Marshal(rec.TokenUsage)
	if err != nil {
		return fmt.Errorf("failed to marshal token usage: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO tasks (request_id, query, status, final_answer, actions, token_usage, total_tokens, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (request_id) DO UPDATE SET
  status = EXCLUDED.status,
  final_answer = EXCLUDED.final_answer,
  actions = EXCLUDED.actions,
  token_usage = EXCLUDED.token_usage,
  total_tokens = EXCLUDED.total_tokens,
  finished_at = EXCLUDED.finished_at;
`, rec.RequestID, rec.Query, rec.Status, rec.FinalAnswer, actions, usage, rec.TotalTokens, rec.CreatedAt, rec.FinishedAt)
	return err
}

func (s *Store) GetTask(ctx context.Context, requestID string) (TaskRecord, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT request_id, query, status, final_answer, actions, token_usage, total_tokens, created_at, finished_at
FROM tasks WHERE request_id = $1`, requestID)

	var rec TaskRecord
	var actions, usage []byte
	var finishedAt sql.NullTime
	err := row.Scan(&rec.RequestID, &rec.Query, &rec.Status, &rec.FinalAnswer, &actions, &usage, &rec.TotalTokens, &rec.CreatedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, err
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rec.Actions); err != nil {
			return TaskRecord{}, false, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}
	if len(usage) > 0 {
		if err := json.Unmarshal(usage, &rec.TokenUsage); err != nil {
			return TaskRecord{}, false, fmt.Errorf("failed to unmarshal token usage: %w", err)
		}
	}
	if finishedAt.Valid {
		ts := finishedAt.Time
		rec.FinishedAt = &ts
	}
	return rec, true, nil
}

func (s *Store) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT request_id, query, status, total_tokens, created_at, finished_at
FROM tasks ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var finishedAt sql.NullTime
		if err := rows.Scan(&rec.RequestID, &rec.Query, &rec.Status, &rec.TotalTokens, &rec.CreatedAt, &finishedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			ts := finishedAt.Time
			rec.FinishedAt = &ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteFinishedBefore removes finished and failed tasks older than cutoff
// and reports how many rows went away.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
DELETE FROM tasks WHERE finished_at IS NOT NULL AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
