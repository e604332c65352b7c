package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"llm": {"api_key": "sk-test"},
		"storage": {"postgres": {"host": "localhost", "port": "5432", "dbname": "deepresearch"}}
	}`)

	cfg := LoadConfig(path)

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Agent.TokenBudget != 1_000_000 {
		t.Fatalf("unexpected default budget: %d", cfg.Agent.TokenBudget)
	}
	if cfg.Agent.StepSleep != 100*time.Millisecond {
		t.Fatalf("unexpected step sleep: %s", cfg.Agent.StepSleep)
	}
	if cfg.LLM.Routing.Evaluator.Temperature != 0.1 {
		t.Fatalf("unexpected evaluator temperature: %f", cfg.LLM.Routing.Evaluator.Temperature)
	}
	if cfg.Search.Provider != "jina" || cfg.Search.TopK != 5 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Storage.Session.Backend != "inmemory" {
		t.Fatalf("unexpected session backend: %s", cfg.Storage.Session.Backend)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"address": ":9999"},
		"llm": {"api_key": "sk-test", "routing": {"agent": {"model": "gpt-4.1", "temperature": 0.5}}},
		"agent": {"token_budget": 50000, "max_bad_attempts": 2},
		"storage": {"postgres": {"url": "postgres://u:p@localhost:5432/dr?sslmode=disable"}}
	}`)

	cfg := LoadConfig(path)

	if cfg.Server.Address != ":9999" {
		t.Fatalf("override not applied: %s", cfg.Server.Address)
	}
	if cfg.Agent.TokenBudget != 50000 || cfg.Agent.MaxBadAttempts != 2 {
		t.Fatalf("agent overrides not applied: %+v", cfg.Agent)
	}
	if cfg.LLM.Routing.Agent.Model != "gpt-4.1" {
		t.Fatalf("routing override not applied: %+v", cfg.LLM.Routing.Agent)
	}
}

func TestPostgresConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "dr"}
	got := p.ConnString()
	want := "host=db port=5432 user=u password=p dbname=dr sslmode=disable"
	if got != want {
		t.Fatalf("unexpected conn string: %s", got)
	}

	p.URL = "postgres://u:p@db:5432/dr"
	if p.ConnString() != p.URL {
		t.Fatalf("url should win when set")
	}
}

func TestPostgresValidate(t *testing.T) {
	if err := (PostgresConfig{}).Validate(); err == nil {
		t.Fatalf("expected validation error for empty settings")
	}
	if err := (PostgresConfig{URL: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("url alone should validate: %v", err)
	}
}
