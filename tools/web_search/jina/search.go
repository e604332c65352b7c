package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/models"
)

const defaultBaseURL = "https://api.jina.ai"

type Search struct {
	ApiKey  string
	BaseURL string
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.SearchResult, int, error) {
	// https://jina.ai/api-dashboard, s.jina.ai behind /v1/search
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	body, _ := json.Marshal(map[string]string{"query": q})
	req, _ := http.NewRequestWithContext(ctx, "POST", base+"/v1/search", strings.NewReader(string(body)))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("jina search returned status: %d", resp.StatusCode)
	}
	var raw struct {
		Code int `json:"code"`
		Data []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Usage       struct {
				Tokens int `json:"tokens"`
			} `json:"usage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, err
	}
	if raw.Code == 402 {
		return nil, 0, fmt.Errorf("jina search: insufficient balance")
	}
	var out []models.SearchResult
	tokens := 0
	for i, r := range raw.Data {
		tokens += r.Usage.Tokens
		if i >= k {
			continue
		}
		out = append(out, models.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return out, tokens, nil
}
