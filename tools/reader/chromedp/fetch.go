package chromedp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/deepresearch/models"
)

// Fetch renders a page in headless Chrome and extracts the readable text.
// It is the offline fallback when no reader API key is configured.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int // Maximum characters to return from the article text
}

func (f *Fetch) Read(ctx context.Context, pageURL string) (models.Page, int, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Page{}, 0, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return models.Page{}, 0, err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return models.Page{}, 0, err
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	// No usage from a local fetch, estimate from content size
	tokens := len(text) / 4
	return models.Page{
		URL:     pageURL,
		Title:   strings.TrimSpace(article.Title),
		Content: text,
	}, tokens, nil
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("DeepResearchAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
