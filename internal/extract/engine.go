package extract

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

// Target selects what an extraction run looks for.
type Target string

const (
	TargetJobs     Target = "jobs"
	TargetContacts Target = "contacts"
)

// Engine runs the extraction cascade over one page.
type Engine struct {
	fetcher    *Fetcher
	subFetcher *Fetcher
	sites      *SiteRegistry

	sufficientHits int
	maxSubPages    int
}

// NewEngine wires the cascade from config.
func NewEngine(cfg config.Config) (*Engine, error) {
	sites, err := LoadSiteRegistry()
	if err != nil {
		return nil, err
	}
	subTimeout := cfg.ScrapeFetchTimeout / 2
	if subTimeout < time.Second {
		subTimeout = time.Second
	}
	return &Engine{
		fetcher:        NewFetcher(cfg.ScrapeFetchTimeout, cfg.ScrapeFetchRetries),
		subFetcher:     NewFetcher(subTimeout, 1),
		sites:          sites,
		sufficientHits: cfg.ScrapeSufficientHits,
		maxSubPages:    cfg.ScrapeMaxSubPages,
	}, nil
}

// Result carries the outcome of one extraction run.
type Result struct {
	Jobs     []JobRecord
	Contacts []ContactRecord
}

// Extract fetches url and runs the cascade for the chosen target. The ai
// client backs the fallback stage only and may be nil.
func (e *Engine) Extract(ctx domain.Context, ai domain.AIClient, url string, target Target, keywords string) (Result, error) {
	doc, err := e.fetcher.Get(ctx, url)
	if err != nil {
		return Result{}, err
	}

	if target == TargetContacts {
		contacts := ParseContacts(doc, url)
		observability.ExtractionRecords.WithLabelValues("contacts").Add(float64(len(contacts)))
		return Result{Contacts: contacts}, nil
	}

	jobs := e.extractJobs(ctx, ai, doc, url)

	// sub-page crawl only helps when the landing page was thin
	if len(jobs) < e.sufficientHits {
		jobs = e.crawlSubPages(ctx, ai, doc, url, jobs)
	}
	jobs = FilterByKeywords(jobs, keywords)
	return Result{Jobs: jobs}, nil
}

// extractJobs runs stages 2-5 over one fetched document, stopping as soon
// as a stage pushes the total to the sufficiency threshold.
func (e *Engine) extractJobs(ctx domain.Context, ai domain.AIClient, doc *goquery.Document, url string) []JobRecord {
	var jobs []JobRecord
	seen := map[string]bool{}

	record := func(stage string, found []JobRecord) {
		before := len(jobs)
		jobs = mergeJobs(jobs, found, seen)
		if added := len(jobs) - before; added > 0 {
			observability.ExtractionRecords.WithLabelValues(stage).Add(float64(added))
			slog.Debug("extraction stage yielded records",
				slog.String("stage", stage), slog.Int("added", added), slog.String("url", url))
		}
	}

	record("jsonld", ParseJSONLD(doc, url))
	if len(jobs) >= e.sufficientHits {
		return jobs
	}

	if rule, ok := e.sites.Match(url); ok {
		record("site", e.sites.Apply(rule, doc, url))
		if len(jobs) >= e.sufficientHits {
			return jobs
		}
	}

	record("generic", ParseGeneric(doc, url))
	if len(jobs) >= e.sufficientHits {
		return jobs
	}

	record("ai", ParseWithAI(ctx, ai, doc, url))
	return jobs
}

// crawlSubPages follows likely listing links from the landing page and
// reruns the cascade on each. Per-page failures are skipped.
func (e *Engine) crawlSubPages(ctx domain.Context, ai domain.AIClient, doc *goquery.Document, baseURL string, jobs []JobRecord) []JobRecord {
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		seen[dedupeKey(j.Title)] = true
	}

	fetched := 0
	for _, sub := range CandidateLinks(doc, baseURL) {
		if fetched >= e.maxSubPages {
			break
		}
		fetched++
		subDoc, err := e.subFetcher.Get(ctx, sub)
		if err != nil {
			slog.Debug("sub-page fetch failed", slog.String("url", sub), slog.Any("error", err))
			continue
		}
		jobs = mergeJobs(jobs, e.extractJobs(ctx, ai, subDoc, sub), seen)
	}
	return jobs
}

// FilterByKeywords keeps jobs whose title, company or description contains
// any of the comma-separated keywords. Empty keywords pass everything.
func FilterByKeywords(jobs []JobRecord, keywords string) []JobRecord {
	var kws []string
	for _, k := range strings.Split(keywords, ",") {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return jobs
	}
	var out []JobRecord
	for _, j := range jobs {
		haystack := strings.ToLower(j.Title + " " + j.Company + " " + j.Description)
		for _, kw := range kws {
			if strings.Contains(haystack, kw) {
				out = append(out, j)
				break
			}
		}
	}
	return out
}
