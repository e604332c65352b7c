package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/models"
)

const defaultBaseURL = "https://r.jina.ai"

// Read fetches a URL through the Jina reader and returns it as markdown.
type Read struct {
	ApiKey   string
	BaseURL  string
	MaxChars int
}

func (rd Read) Read(ctx context.Context, url string) (models.Page, int, error) {
	base := rd.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	body, _ := json.Marshal(map[string]string{"url": url})
	req, _ := http.NewRequestWithContext(ctx, "POST", base+"/", strings.NewReader(string(body)))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+rd.ApiKey)
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-Return-Format", "markdown")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Page{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Page{}, 0, fmt.Errorf("jina reader returned status: %d", resp.StatusCode)
	}
	var raw struct {
		Code int `json:"code"`
		Data struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
			Usage   struct {
				Tokens int `json:"tokens"`
			} `json:"usage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Page{}, 0, err
	}
	if raw.Code == 402 {
		return models.Page{}, 0, fmt.Errorf("jina reader: insufficient balance")
	}
	if raw.Data.Content == "" {
		return models.Page{}, 0, fmt.Errorf("jina reader: empty content for %s", url)
	}
	content := raw.Data.Content
	if rd.MaxChars > 0 && len(content) > rd.MaxChars {
		content = content[:rd.MaxChars]
	}
	page := models.Page{
		URL:     raw.Data.URL,
		Title:   raw.Data.Title,
		Content: content,
	}
	if page.URL == "" {
		page.URL = url
	}
	return page, raw.Data.Usage.Tokens, nil
}
