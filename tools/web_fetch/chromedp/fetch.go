package chromedp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/scoutrun/scout/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome before extraction. Needed for
// JS-heavy sites where the plain fetcher only sees an empty shell.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
}

func (f Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return models.Result{URL: rawURL, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return models.Result{URL: rawURL, Status: 200, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := article.TextContent
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	sum := sha1.Sum([]byte(html))

	return models.Result{
		URL:      rawURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     strings.TrimSpace(text),
		TopImage: article.Image,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func fetchHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("ScoutAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
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
