package web_fetch

import (
	"context"
	"time"

	"github.com/scoutrun/scout/tools/web_fetch/chromedp"
	"github.com/scoutrun/scout/tools/web_fetch/models"
	"github.com/scoutrun/scout/tools/web_fetch/plain"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return &plain.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
