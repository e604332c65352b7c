package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchSumsUsageTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["query"] == "" {
			t.Errorf("bad request body: %v %v", body, err)
		}
		w.Write([]byte(`{"code":200,"data":[
			{"title":"A","url":"https://a","description":"first","usage":{"tokens":100}},
			{"title":"B","url":"https://b","description":"second","usage":{"tokens":50}}
		]}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "jina-key", BaseURL: srv.URL}
	results, tokens, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if tokens != 150 {
		t.Fatalf("expected summed usage 150, got %d", tokens)
	}
}

func TestSearchInsufficientBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":402,"data":[]}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "jina-key", BaseURL: srv.URL}
	if _, _, err := s.Search(context.Background(), "q", 3); err == nil {
		t.Fatalf("expected balance error")
	}
}
