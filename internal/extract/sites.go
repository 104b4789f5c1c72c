package extract

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/jobintel/jobintel/pkg/textx"
)

//go:embed sites.yaml
var sitesYAML []byte

// SiteRule is one data-driven per-site parser: CSS selectors for the
// listing container and its fields, plus fixed fallbacks.
type SiteRule struct {
	Host             string `yaml:"host"`
	Container        string `yaml:"container"`
	Title            string `yaml:"title"`
	Company          string `yaml:"company"`
	Tags             string `yaml:"tags"`
	CompanyFromTitle bool   `yaml:"company_from_title"`
	DefaultCompany   string `yaml:"default_company"`
	Location         string `yaml:"location"`
}

// SiteRegistry holds the rule table loaded from the embedded sites.yaml.
type SiteRegistry struct {
	rules []SiteRule
}

// LoadSiteRegistry parses the embedded rule table.
func LoadSiteRegistry() (*SiteRegistry, error) {
	var rules []SiteRule
	if err := yaml.Unmarshal(sitesYAML, &rules); err != nil {
		return nil, fmt.Errorf("op=extract.LoadSiteRegistry: %w", err)
	}
	return &SiteRegistry{rules: rules}, nil
}

// Match returns the rule for a URL host, if any.
func (r *SiteRegistry) Match(url string) (SiteRule, bool) {
	lower := strings.ToLower(url)
	for _, rule := range r.rules {
		if strings.Contains(lower, rule.Host) {
			return rule, true
		}
	}
	return SiteRule{}, false
}

// Apply runs one rule over a fetched document.
func (r *SiteRegistry) Apply(rule SiteRule, doc *goquery.Document, sourceURL string) []JobRecord {
	var jobs []JobRecord
	doc.Find(rule.Container).Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(rule.Title).First().Text())
		if title == "" || len(title) < 5 || len(title) > maxTitleChars {
			return
		}

		company := ""
		if rule.Company != "" {
			company = strings.TrimSpace(row.Find(rule.Company).First().Text())
		}
		if rule.CompanyFromTitle {
			company = companyFromTitle(title)
		}
		if company == "" {
			company = textx.FirstNonEmpty(rule.DefaultCompany, "Unknown")
		}

		desc := title
		if rule.Tags != "" {
			var tags []string
			row.Find(rule.Tags).EachWithBreak(func(i int, t *goquery.Selection) bool {
				tags = append(tags, strings.TrimSpace(t.Text()))
				return i < 4
			})
			if len(tags) > 0 {
				desc = "Tags: " + strings.Join(tags, ", ")
			}
		} else if company != "" {
			desc = title + " at " + company
		}

		jobs = append(jobs, JobRecord{
			Title:       clip(title, maxTitleChars),
			Company:     clip(company, maxFieldChars),
			Location:    rule.Location,
			Description: clip(desc, maxDescChars),
			SourceURL:   sourceURL,
		})
	})
	return jobs
}

// companyFromTitle pulls an employer out of aggregator headlines shaped
// like "Role at Company (location)" or "Company - Role".
func companyFromTitle(title string) string {
	if _, after, ok := strings.Cut(title, " at "); ok {
		company, _, _ := strings.Cut(after, "(")
		return strings.TrimSpace(company)
	}
	if before, _, ok := strings.Cut(title, " - "); ok {
		return strings.TrimSpace(before)
	}
	return ""
}
