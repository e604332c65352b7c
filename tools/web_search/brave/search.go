package brave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/utils"
)

const defaultBaseURL = "https://api.search.brave.com"

type Search struct {
	ApiKey  string
	BaseURL string // empty means the public endpoint
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.SearchResult, int, error) {
	// https://api.search.brave.com/app/documentation/web-search
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/res/v1/web/search?q=%s&count=%d", base, utils.UrlQuery(q), k)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("brave search returned status: %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, 0, err
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, 0, err
	}
	var out []models.SearchResult
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	// Brave reports no token usage, estimate from response size
	tokens := buf.Len() / 4
	return out, tokens, nil
}
