package plain

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/scoutrun/scout/tools/web_fetch/models"
)

// Fetch retrieves pages over plain HTTP and extracts the readable article
// text. Good enough for most news and blog pages; JS-rendered sites need the
// chromedp fetcher instead.
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

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("User-Agent", "ScoutAgent/1.0 (+contact@example.com)")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{URL: rawURL, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.Result{URL: rawURL, Status: resp.StatusCode, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	html := string(body)

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return models.Result{URL: rawURL, Status: resp.StatusCode, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := article.TextContent
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	sum := sha1.Sum(body)

	return models.Result{
		URL:      rawURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     strings.TrimSpace(text),
		TopImage: article.Image,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   resp.StatusCode,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
