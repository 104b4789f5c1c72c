package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	jobPathRE = regexp.MustCompile(`(?i)job|career|position|opening|vacanc|hiring|work-with|join`)
	jobTextRE = regexp.MustCompile(`(?i)job|career|position|opening|vacanc|hiring|see all|view all`)
)

const maxCrawlCandidates = 10

// CandidateLinks returns same-domain links that likely lead to listings,
// capped at maxCrawlCandidates. Order follows document order so the most
// prominent links win the cap.
func CandidateLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		full := base.ResolveReference(ref)
		if full.Host != base.Host || seen[full.String()] || full.String() == baseURL {
			return true
		}
		if jobPathRE.MatchString(strings.ToLower(full.Path)) ||
			jobTextRE.MatchString(strings.ToLower(strings.TrimSpace(a.Text()))) {
			seen[full.String()] = true
			out = append(out, full.String())
		}
		return len(out) < maxCrawlCandidates
	})
	return out
}
