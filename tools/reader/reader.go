package reader

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/tools/reader/chromedp"
	"github.com/mohammad-safakhou/deepresearch/tools/reader/jina"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// Reader turns a URL into readable text plus the token cost to book
// against the task budget.
type Reader interface {
	Read(ctx context.Context, url string) (models.Page, int, error)
}

type FetcherType string

const (
	JinaFetcherType     FetcherType = "jina"
	ChromedpFetcherType FetcherType = "chromedp"
)

type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func NewReader(fetcherType FetcherType, apiKey string, timeout time.Duration, maxChars int) (Reader, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case JinaFetcherType:
		return jina.Read{ApiKey: apiKey, MaxChars: maxChars}, nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
