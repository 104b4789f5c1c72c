package extract

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/PuerkitoBio/goquery"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

// userAgents rotate per attempt so a transient block on one identity does
// not fail the whole fetch.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Fetcher retrieves pages with retry and a rotating User-Agent.
type Fetcher struct {
	hc      *http.Client
	retries uint64
}

// NewFetcher builds a fetcher; retries is the total attempt count.
func NewFetcher(timeout time.Duration, retries int) *Fetcher {
	if retries < 1 {
		retries = 1
	}
	return &Fetcher{
		hc:      &http.Client{Timeout: timeout},
		retries: uint64(retries),
	}
}

// Get fetches url and parses the body as a document. All attempts failing
// yields ErrFetchFailed; extraction cannot proceed without a page.
func (f *Fetcher) Get(ctx domain.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := f.hc.Do(req)
		if err != nil {
			observability.FetchAttemptsTotal.WithLabelValues("error").Inc()
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			observability.FetchAttemptsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			observability.FetchAttemptsTotal.WithLabelValues("error").Inc()
			return backoff.Permanent(err)
		}
		observability.FetchAttemptsTotal.WithLabelValues("success").Inc()
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, f.retries-1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("op=extract.Fetch url=%s: %w: %v", url, domain.ErrFetchFailed, err)
	}
	return doc, nil
}
