package web_search

import (
	"context"

	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/brave"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/jina"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/serper"
)

// WebSearcher runs one keyword query and returns hits plus the token cost
// to book against the task budget.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.SearchResult, int, error)
}

type Provider string

const (
	JinaProvider   Provider = "jina"
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case JinaProvider:
		return jina.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
