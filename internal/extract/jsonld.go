package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobintel/jobintel/pkg/textx"
)

// ParseJSONLD extracts schema.org JobPosting items from the page's
// application/ld+json blocks. Each block parses independently; malformed
// ones are skipped so one bad publisher script never costs the good ones.
func ParseJSONLD(doc *goquery.Document, sourceURL string) []JobRecord {
	var jobs []JobRecord
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		for _, item := range flattenLD(data) {
			if j, ok := jobFromLD(item, sourceURL); ok {
				jobs = append(jobs, j)
			}
		}
	})
	return jobs
}

// flattenLD normalizes a decoded block into a list of objects, expanding
// one level of @graph as publishers commonly nest postings there.
func flattenLD(data any) []map[string]any {
	var raw []any
	switch v := data.(type) {
	case []any:
		raw = v
	default:
		raw = []any{v}
	}
	var out []map[string]any
	for _, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, m)
		if graph, ok := m["@graph"].([]any); ok {
			for _, g := range graph {
				if gm, ok := g.(map[string]any); ok {
					out = append(out, gm)
				}
			}
		}
	}
	return out
}

func jobFromLD(item map[string]any, sourceURL string) (JobRecord, bool) {
	if !strings.Contains(fmt.Sprintf("%v", item["@type"]), "JobPosting") {
		return JobRecord{}, false
	}
	title := strings.TrimSpace(ldString(item["title"]))
	if title == "" {
		title = strings.TrimSpace(ldString(item["name"]))
	}
	if title == "" {
		return JobRecord{}, false
	}

	var company string
	if org, ok := item["hiringOrganization"].(map[string]any); ok {
		company = strings.TrimSpace(ldString(org["name"]))
	}
	var location string
	if loc, ok := item["jobLocation"].(map[string]any); ok {
		if addr, ok := loc["address"].(map[string]any); ok {
			location = strings.TrimSpace(ldString(addr["addressLocality"]))
		}
	}

	desc := ldString(item["description"])
	if strings.Contains(desc, "<") {
		desc = stripHTMLText(desc)
	}
	desc = textx.CollapseWhitespace(desc)
	if desc == "" {
		desc = title
	}

	return JobRecord{
		Title:       clip(title, maxTitleChars),
		Company:     clip(textx.FirstNonEmpty(company, unknownCompany), maxFieldChars),
		Location:    clip(textx.FirstNonEmpty(location, unknownLocation), maxFieldChars),
		Description: clip(desc, maxDescChars),
		SourceURL:   sourceURL,
	}, true
}

func ldString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// stripHTMLText renders an HTML fragment as plain text. Unparseable
// fragments return verbatim; a description is better dirty than dropped.
func stripHTMLText(fragment string) string {
	frag, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return frag.Text()
}
