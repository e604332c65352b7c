package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadReturnsPageAndTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Return-Format"); got != "markdown" {
			t.Errorf("expected markdown format header, got %q", got)
		}
		w.Write([]byte(`{"code":200,"data":{"title":"Doc","url":"https://example.com/doc","content":"# Heading\n\nbody text","usage":{"tokens":321}}}`))
	}))
	defer srv.Close()

	rd := Read{ApiKey: "jina-key", BaseURL: srv.URL}
	page, tokens, err := rd.Read(context.Background(), "https://example.com/doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "Doc" || !strings.Contains(page.Content, "body text") {
		t.Fatalf("unexpected page: %+v", page)
	}
	if tokens != 321 {
		t.Fatalf("expected 321 tokens, got %d", tokens)
	}
}

func TestReadTruncatesToMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"title":"Long","url":"https://example.com","content":"` + strings.Repeat("x", 200) + `","usage":{"tokens":50}}}`))
	}))
	defer srv.Close()

	rd := Read{ApiKey: "jina-key", BaseURL: srv.URL, MaxChars: 100}
	page, _, err := rd.Read(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Content) != 100 {
		t.Fatalf("expected truncation to 100 chars, got %d", len(page.Content))
	}
}

func TestReadEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"title":"","url":"","content":""}}`))
	}))
	defer srv.Close()

	rd := Read{ApiKey: "jina-key", BaseURL: srv.URL}
	if _, _, err := rd.Read(context.Background(), "https://example.com"); err == nil {
		t.Fatalf("expected error for empty content")
	}
}
