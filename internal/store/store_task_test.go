package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/deepresearch/models"
)

func TestSaveTaskUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	finished := now.Add(5 * time.Second)
	rec := TaskRecord{
		RequestID:   "req-1",
		Query:       "what is bm25?",
		Status:      models.StatusCompleted,
		FinalAnswer: "a ranking function",
		Actions: []models.Action{
			{Action: models.ActionSearch, SearchQuery: "bm25"},
			{Action: models.ActionAnswer, Answer: "a ranking function"},
		},
		TokenUsage:  map[string]int{"evaluator": 120, "jina-search": 400},
		TotalTokens: 520,
		CreatedAt:   now,
		FinishedAt:  &finished,
	}

	query := regexp.QuoteMeta(`
INSERT INTO tasks (request_id, query, status, final_answer, actions, token_usage, total_tokens, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (request_id) DO UPDATE SET
  status = EXCLUDED.status,
  final_answer = EXCLUDED.final_answer,
  actions = EXCLUDED.actions,
  token_usage = EXCLUDED.token_usage,
  total_tokens = EXCLUDED.total_tokens,
  finished_at = EXCLUDED.finished_at;
`)
	mock.ExpectExec(query).
		WithArgs(rec.RequestID, rec.Query, rec.Status, rec.FinalAnswer, sqlmock.AnyArg(), sqlmock.AnyArg(), rec.TotalTokens, rec.CreatedAt, rec.FinishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveTask(context.Background(), rec); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTaskRoundtrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"request_id", "query", "status", "final_answer", "actions", "token_usage", "total_tokens", "created_at", "finished_at"}).
		AddRow("req-2", "q", models.StatusCompleted, "done",
			[]byte(`[{"action":"search","think":"","searchQuery":"q"}]`),
			[]byte(`{"evaluator":10}`), 10, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT request_id, query, status, final_answer, actions, token_usage, total_tokens, created_at, finished_at
FROM tasks WHERE request_id = $1`)).
		WithArgs("req-2").
		WillReturnRows(rows)

	rec, found, err := st.GetTask(context.Background(), "req-2")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if !found {
		t.Fatalf("expected task found")
	}
	if len(rec.Actions) != 1 || rec.Actions[0].Action != models.ActionSearch {
		t.Fatalf("actions not decoded: %+v", rec.Actions)
	}
	if rec.TokenUsage["evaluator"] != 10 {
		t.Fatalf("usage not decoded: %+v", rec.TokenUsage)
	}
	if rec.FinishedAt == nil {
		t.Fatalf("finished_at not decoded")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("SELECT request_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}))

	_, found, err := st.GetTask(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestDeleteFinishedBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`
DELETE FROM tasks WHERE finished_at IS NOT NULL AND finished_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.DeleteFinishedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteFinishedBefore: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows deleted, got %d", n)
	}
}
