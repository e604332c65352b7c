package serper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchParsesOrganic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "serper-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Write([]byte(`{"organic":[
			{"title":"One","link":"https://one","snippet":"first"},
			{"title":"Two","link":"https://two","snippet":"second"}
		]}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "serper-key", BaseURL: srv.URL}
	results, tokens, err := s.Search(context.Background(), "go testing", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[1].Title != "Two" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if tokens <= 0 {
		t.Fatalf("expected a token estimate, got %d", tokens)
	}
}
